package services

import (
	"time"

	"room-booking/utils"

	"github.com/shopspring/decimal"
)

// StayRange is a validated half-open [CheckIn, CheckOut) date range.
type StayRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// Nights is always >= 1 for a range built by ParseStayRange.
func (r StayRange) Nights() int64 {
	return utils.DaysBetween(r.CheckIn, r.CheckOut)
}

// Overlaps is the half-open interval test.
func (r StayRange) Overlaps(other StayRange) bool {
	return r.CheckIn.Before(other.CheckOut) && r.CheckOut.After(other.CheckIn)
}

// ParseStayRange validates both dates and requires checkOut > checkIn.
func ParseStayRange(checkIn, checkOut string) (StayRange, error) {
	in, err := utils.ParseDate(checkIn)
	if err != nil {
		return StayRange{}, ErrInvalidDate
	}
	out, err := utils.ParseDate(checkOut)
	if err != nil {
		return StayRange{}, ErrInvalidDate
	}
	if !out.After(in) {
		return StayRange{}, ErrInvalidDateRange
	}
	return StayRange{CheckIn: in, CheckOut: out}, nil
}

// TotalPrice is nights x pricePerNight rounded half away from zero to cents.
func TotalPrice(pricePerNight decimal.Decimal, nights int64) decimal.Decimal {
	return pricePerNight.Mul(decimal.NewFromInt(nights)).Round(2)
}
