package controllers

import (
	"time"

	"room-booking/models"
	"room-booking/services"
	"room-booking/utils"
)

type CreateBookingRequest struct {
	RoomID       uint   `json:"roomId" binding:"required"`
	CheckInDate  string `json:"checkInDate" binding:"required"`
	CheckOutDate string `json:"checkOutDate" binding:"required"`
}

type CancelBookingRequest struct {
	Reason *string `json:"reason"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
	All          bool   `json:"all"`
}

// BookingResponse is the wire shape of a booking.
type BookingResponse struct {
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

func toBookingResponse(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:                 b.ID,
		UserID:             b.UserID,
		RoomID:             b.RoomID,
		CheckInDate:        utils.FormatDate(b.CheckIn),
		CheckOutDate:       utils.FormatDate(b.CheckOut),
		Nights:             utils.DaysBetween(b.CheckIn, b.CheckOut),
		TotalPrice:         b.TotalPrice.StringFixed(2),
		Status:             b.Status,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

type BookingListResponse struct {
	Items    []BookingResponse `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// RoomResponse renders prices as fixed two-decimal strings.
type RoomResponse struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Location      string          `json:"location"`
	Capacity      int             `json:"capacity"`
	PricePerNight string          `json:"pricePerNight"`
	Amenities     map[string]bool `json:"amenities"`
	Images        []string        `json:"images"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toRoomResponse(r *models.Room) RoomResponse {
	amenities := r.Amenities.Data()
	if amenities == nil {
		amenities = map[string]bool{}
	}
	images := []string(r.Images)
	if images == nil {
		images = []string{}
	}
	return RoomResponse{
		ID:            r.ID,
		Name:          r.Name,
		Location:      r.Location,
		Capacity:      r.Capacity,
		PricePerNight: r.PricePerNight.StringFixed(2),
		Amenities:     amenities,
		Images:        images,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type RoomListResponse struct {
	Items    []RoomResponse `json:"items"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
}

type AuthResponse struct {
	User UserResponse `json:"user"`
	services.TokenPair
}
