package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

// Booking occupies the nights [CheckIn, CheckOut) of one room. Both dates are
// stored as UTC midnight.
type Booking struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	UserID             uint            `gorm:"column:user_id;not null;index" json:"userId"`
	RoomID             uint            `gorm:"column:room_id;not null;index:idx_bookings_room_active,priority:1" json:"roomId"`
	Status             string          `gorm:"column:status;size:32;not null;default:pending;index:idx_bookings_room_active,priority:2" json:"status"`
	CheckIn            time.Time       `gorm:"column:check_in;type:date;not null;index:idx_bookings_room_active,priority:3" json:"checkInDate"`
	CheckOut           time.Time       `gorm:"column:check_out;type:date;not null;index:idx_bookings_room_active,priority:4" json:"checkOutDate"`
	TotalPrice         decimal.Decimal `gorm:"column:total_price;type:decimal(12,2);not null" json:"totalPrice"`
	CancellationReason *string         `gorm:"column:cancellation_reason;size:500" json:"cancellationReason,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// IsActive reports whether the booking still holds its dates.
func (b Booking) IsActive() bool {
	return b.Status != BookingStatusCancelled
}
