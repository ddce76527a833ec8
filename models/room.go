package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	RoomStatusAvailable   = "available"
	RoomStatusUnavailable = "unavailable"
)

type Room struct {
	ID            uint                                `gorm:"primaryKey" json:"id"`
	Name          string                              `gorm:"size:255;not null" json:"name"`
	Location      string                              `gorm:"size:255;index" json:"location"`
	Capacity      int                                 `gorm:"not null" json:"capacity"`
	PricePerNight decimal.Decimal                     `gorm:"column:price_per_night;type:decimal(10,2);not null" json:"pricePerNight"`
	Amenities     datatypes.JSONType[map[string]bool] `gorm:"column:amenities" json:"amenities"`
	Images        datatypes.JSONSlice[string]         `gorm:"column:images" json:"images"`
	Status        string                              `gorm:"size:32;not null;default:available;index" json:"status"`
	CreatedAt     time.Time                           `json:"createdAt"`
	UpdatedAt     time.Time                           `json:"updatedAt"`
}

func IsValidRoomStatus(status string) bool {
	return status == RoomStatusAvailable || status == RoomStatusUnavailable
}
