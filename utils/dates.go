package utils

import (
	"errors"
	"time"
)

// DateLayout is the wire format for check-in / check-out dates.
const DateLayout = "2006-01-02"

var ErrBadDate = errors.New("date must be YYYY-MM-DD")

// ParseDate parses a strict YYYY-MM-DD calendar date as UTC midnight.
// 2024-02-30 and similar are rejected.
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, ErrBadDate
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrBadDate
	}
	return t, nil
}

// TruncateDate drops the time of day, keeping the calendar date as seen in UTC.
func TruncateDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int64 {
	return int64(TruncateDate(b).Sub(TruncateDate(a)).Hours() / 24)
}
