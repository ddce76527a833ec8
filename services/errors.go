package services

import (
	"errors"
	"fmt"
	"strings"

	"room-booking/config"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	ErrRoomNotFound          = errors.New("room not found")
	ErrRoomUnavailable       = errors.New("room is not available for booking")
	ErrDateConflict          = errors.New("room is already booked for the selected dates")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrForbidden             = errors.New("not allowed to access this booking")
	ErrAlreadyCancelled      = errors.New("booking is already cancelled")
	ErrCannotCancelCompleted = errors.New("completed bookings cannot be cancelled")
	ErrInvalidDateRange      = errors.New("check-out date must be after check-in date")
	ErrInvalidDate           = errors.New("dates must be valid YYYY-MM-DD calendar dates")
	ErrPastCheckIn           = errors.New("check-in date must not be in the past")
	ErrEmailTaken            = errors.New("email is already registered")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrInvalidToken          = errors.New("invalid or expired token")
	ErrUserNotFound          = errors.New("user not found")
	ErrValidation            = errors.New("validation failed")
	ErrTransient             = errors.New("temporary database failure, please retry")
)

// Kind is the coarse error class surfaced at the API boundary.
type Kind string

const (
	KindNotFound     Kind = "NotFound"
	KindConflict     Kind = "Conflict"
	KindForbidden    Kind = "Forbidden"
	KindValidation   Kind = "ValidationError"
	KindUnauthorized Kind = "Unauthorized"
	KindTransient    Kind = "Transient"
	KindInternal     Kind = "Internal"
)

var errorTable = []struct {
	err  error
	kind Kind
	code string
}{
	{ErrRoomNotFound, KindNotFound, "error.roomNotFound"},
	{ErrBookingNotFound, KindNotFound, "error.bookingNotFound"},
	{ErrUserNotFound, KindNotFound, "error.userNotFound"},
	{ErrRoomUnavailable, KindConflict, "error.roomUnavailable"},
	{ErrDateConflict, KindConflict, "error.dateConflict"},
	{ErrAlreadyCancelled, KindConflict, "error.alreadyCancelled"},
	{ErrCannotCancelCompleted, KindConflict, "error.cannotCancelCompleted"},
	{ErrEmailTaken, KindConflict, "error.emailTaken"},
	{ErrForbidden, KindForbidden, "error.forbidden"},
	{ErrInvalidDateRange, KindValidation, "error.invalidDateRange"},
	{ErrInvalidDate, KindValidation, "error.invalidDate"},
	{ErrPastCheckIn, KindValidation, "error.pastCheckIn"},
	{ErrValidation, KindValidation, "error.validation"},
	{ErrInvalidCredentials, KindUnauthorized, "error.invalidCredentials"},
	{ErrInvalidToken, KindUnauthorized, "error.invalidToken"},
	{ErrTransient, KindTransient, "error.transient"},
}

// KindOf classifies err; unknown errors are Internal.
func KindOf(err error) Kind {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindInternal
}

// CodeOf yields the stable machine code for err.
func CodeOf(err error) string {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "error.internal"
}

// IsExpected reports whether err is a caller-side condition rather than a fault.
func IsExpected(err error) bool {
	k := KindOf(err)
	return k != KindInternal && k != KindTransient
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// classifyDBError maps driver failures onto the taxonomy. Lock waits,
// deadlocks and busy databases become ErrTransient; the overlap trigger
// becomes ErrDateConflict. Anything else passes through wrapped.
func classifyDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindInternal {
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1205, 1213:
			return fmt.Errorf("%s: %w (%v)", op, ErrTransient, err)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%s: %w (%v)", op, ErrTransient, err)
		}
	}

	if strings.Contains(err.Error(), config.OverlapGuardMessage) {
		return fmt.Errorf("%s: %w", op, ErrDateConflict)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return true
	}
	return false
}
