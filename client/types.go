package client

import (
	"fmt"
	"time"
)

// APIError is a non-success response from the API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

type User struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the result of register, login and refresh.
type Session struct {
	User             User      `json:"user"`
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	TokenType        string    `json:"tokenType"`
}

type Room struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Location      string          `json:"location"`
	Capacity      int             `json:"capacity"`
	PricePerNight string          `json:"pricePerNight"`
	Amenities     map[string]bool `json:"amenities"`
	Images        []string        `json:"images"`
	Status        string          `json:"status"`
}

type RoomList struct {
	Items    []Room `json:"items"`
	Total    int64  `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// RoomQuery mirrors the /api/rooms query parameters. Zero values are omitted.
type RoomQuery struct {
	Location      string
	MinCapacity   int
	MaxPrice      string
	Status        string
	AvailableFrom string
	AvailableTo   string
	Page          int
	PageSize      int
}

type Availability struct {
	RoomID           uint    `json:"roomId"`
	DateFrom         string  `json:"dateFrom"`
	DateTo           string  `json:"dateTo"`
	Available        bool    `json:"available"`
	ConflictingCount int64   `json:"conflictingCount"`
	Nights           *int64  `json:"nights,omitempty"`
	TotalPrice       *string `json:"totalPrice,omitempty"`
}

type Booking struct {
	ID                 uint      `json:"id"`
	UserID             uint      `json:"userId"`
	RoomID             uint      `json:"roomId"`
	CheckInDate        string    `json:"checkInDate"`
	CheckOutDate       string    `json:"checkOutDate"`
	Nights             int64     `json:"nights"`
	TotalPrice         string    `json:"totalPrice"`
	Status             string    `json:"status"`
	CancellationReason *string   `json:"cancellationReason"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type BookingList struct {
	Items    []Booking `json:"items"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}
