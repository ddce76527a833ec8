package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"room-booking/events"
	"room-booking/metrics"
	"room-booking/models"
	"room-booking/utils"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxReasonLength = 500

// RoomFinder is the read side of the Room Directory.
type RoomFinder interface {
	FindRoomByID(ctx context.Context, id uint) (*models.Room, error)
}

// UserFinder resolves the notification address of a booking's owner.
type UserFinder interface {
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
}

// BookingNotifier is fire-and-forget; it never reports failure.
type BookingNotifier interface {
	SendBookingConfirmation(email string, d utils.BookingEmailData)
	SendBookingCancellation(email string, d utils.BookingEmailData)
}

// BookingService is the Booking Transaction Manager.
type BookingService struct {
	DB       *gorm.DB
	Rooms    RoomFinder
	Users    UserFinder
	Notifier BookingNotifier
	Events   events.Publisher
	Logger   zerolog.Logger
	Now      func() time.Time

	wg sync.WaitGroup
}

func NewBookingService(db *gorm.DB, rooms RoomFinder, users UserFinder, notifier BookingNotifier, publisher events.Publisher, logger *zerolog.Logger) *BookingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &BookingService{
		DB:       db,
		Rooms:    rooms,
		Users:    users,
		Notifier: notifier,
		Events:   publisher,
		Logger:   logger.With().Str("component", "bookings").Logger(),
		Now:      time.Now,
	}
}

// Today is the current UTC calendar date.
func (s *BookingService) Today() time.Time {
	return utils.TruncateDate(s.Now())
}

// Availability is the advisory answer of CheckAvailability.
type Availability struct {
	RoomID           uint    `json:"roomId"`
	DateFrom         string  `json:"dateFrom"`
	DateTo           string  `json:"dateTo"`
	Available        bool    `json:"available"`
	ConflictingCount int64   `json:"conflictingCount"`
	Nights           *int64  `json:"nights,omitempty"`
	TotalPrice       *string `json:"totalPrice,omitempty"`
}

// BookingPage is one page of a user's bookings.
type BookingPage struct {
	Items    []models.Booking `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// lockRoom loads the room with SELECT ... FOR UPDATE. On SQLite the clause is
// dropped and the BEGIN IMMEDIATE transaction holds the write lock instead.
func lockRoom(tx *gorm.DB, roomID uint, room *models.Room) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	return nil
}

// overlapping selects active bookings of roomID intersecting stay, half-open.
func overlapping(db *gorm.DB, roomID uint, stay StayRange) *gorm.DB {
	return db.Model(&models.Booking{}).
		Where("room_id = ? AND status <> ? AND check_in < ? AND check_out > ?",
			roomID, models.BookingStatusCancelled, stay.CheckOut, stay.CheckIn)
}

// CreateBooking atomically locks the room, re-checks its status and the
// overlap predicate, prices the stay and inserts a pending booking.
func (s *BookingService) CreateBooking(ctx context.Context, userID, roomID uint, checkIn, checkOut string) (*models.Booking, error) {
	stay, err := ParseStayRange(checkIn, checkOut)
	if err == nil && stay.CheckIn.Before(s.Today()) {
		err = ErrPastCheckIn
	}
	if err != nil {
		metrics.IncBooking(CodeOf(err))
		return nil, err
	}

	var booking models.Booking
	var room models.Room

	start := time.Now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRoom(tx, roomID, &room); err != nil {
			return err
		}
		if room.Status != models.RoomStatusAvailable {
			return ErrRoomUnavailable
		}

		var conflicts int64
		if err := overlapping(tx, roomID, stay).Count(&conflicts).Error; err != nil {
			return err
		}
		if conflicts > 0 {
			return ErrDateConflict
		}

		now := s.Now().UTC()
		booking = models.Booking{
			UserID:     userID,
			RoomID:     roomID,
			Status:     models.BookingStatusPending,
			CheckIn:    stay.CheckIn,
			CheckOut:   stay.CheckOut,
			TotalPrice: TotalPrice(room.PricePerNight, stay.Nights()),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return tx.Create(&booking).Error
	})
	metrics.ObserveBookingTx(time.Since(start))

	if err != nil {
		err = classifyDBError("create booking", err)
		metrics.IncBooking(CodeOf(err))
		s.logFailure(err, "create booking", roomID, userID)
		return nil, err
	}

	metrics.IncBooking("ok")
	s.Logger.Info().
		Uint("booking_id", booking.ID).
		Uint("room_id", roomID).
		Uint("user_id", userID).
		Str("total_price", booking.TotalPrice.StringFixed(2)).
		Msg("booking created")

	s.afterCommit(events.BookingCreated, booking, &room)
	return &booking, nil
}

// CancelBooking moves an active booking owned by userID to cancelled. The
// update is conditional on the status read, so a racing cancel loses cleanly.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID uint, reason *string) (*models.Booking, error) {
	booking, err := s.cancel(ctx, bookingID, userID, reason)
	if err != nil {
		metrics.IncCancellation(CodeOf(err))
		s.logFailure(err, "cancel booking", 0, userID)
		return nil, err
	}
	metrics.IncCancellation("ok")
	s.Logger.Info().Uint("booking_id", booking.ID).Uint("user_id", userID).Msg("booking cancelled")

	s.afterCommit(events.BookingCancelled, *booking, nil)
	return booking, nil
}

func normalizeReason(reason *string) (*string, error) {
	if reason == nil {
		return nil, nil
	}
	r := strings.TrimSpace(*reason)
	if r == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(r) > maxReasonLength {
		return nil, validationError("reason must be at most %d characters", maxReasonLength)
	}
	return &r, nil
}

func terminalStatusError(status string) error {
	switch status {
	case models.BookingStatusCancelled:
		return ErrAlreadyCancelled
	case models.BookingStatusCompleted:
		return ErrCannotCancelCompleted
	}
	return nil
}

func (s *BookingService) cancel(ctx context.Context, bookingID, userID uint, reason *string) (*models.Booking, error) {
	reason, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	booking, err := s.loadOwned(db, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if err := terminalStatusError(booking.Status); err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	res := db.Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, booking.Status).
		Updates(map[string]interface{}{
			"status":              models.BookingStatusCancelled,
			"cancellation_reason": reason,
			"updated_at":          now,
		})
	if res.Error != nil {
		return nil, classifyDBError("cancel booking", res.Error)
	}

	if res.RowsAffected == 0 {
		// status changed underneath us; report what it became
		var current models.Booking
		if err := db.First(&current, booking.ID).Error; err != nil {
			return nil, classifyDBError("reload booking", err)
		}
		if err := terminalStatusError(current.Status); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("cancel booking %d: %w", booking.ID, ErrTransient)
	}

	booking.Status = models.BookingStatusCancelled
	booking.CancellationReason = reason
	booking.UpdatedAt = now
	return booking, nil
}

func (s *BookingService) loadOwned(db *gorm.DB, bookingID, userID uint) (*models.Booking, error) {
	var booking models.Booking
	if err := db.First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, classifyDBError("find booking", err)
	}
	if booking.UserID != userID {
		return nil, ErrForbidden
	}
	return &booking, nil
}

// GetBooking applies the same ownership rule as cancellation.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, userID uint) (*models.Booking, error) {
	return s.loadOwned(s.DB.WithContext(ctx), bookingID, userID)
}

// ListUserBookings returns the user's bookings newest first.
func (s *BookingService) ListUserBookings(ctx context.Context, userID uint, status string, page, pageSize int) (*BookingPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	q := s.DB.WithContext(ctx).Model(&models.Booking{}).Where("user_id = ?", userID)
	if status != "" {
		switch status {
		case models.BookingStatusPending, models.BookingStatusConfirmed,
			models.BookingStatusCancelled, models.BookingStatusCompleted:
		default:
			return nil, validationError("unknown booking status %q", status)
		}
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, classifyDBError("count bookings", err)
	}
	items := []models.Booking{}
	if err := q.Order("created_at DESC, id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error; err != nil {
		return nil, classifyDBError("list bookings", err)
	}
	return &BookingPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// CheckAvailability runs the overlap predicate without any lock. It is
// advisory only; CreateBooking re-checks under the room lock.
func (s *BookingService) CheckAvailability(ctx context.Context, roomID uint, dateFrom, dateTo string) (*Availability, error) {
	stay, err := ParseStayRange(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	var conflicts int64
	if err := overlapping(s.DB.WithContext(ctx), roomID, stay).Count(&conflicts).Error; err != nil {
		return nil, classifyDBError("check availability", err)
	}

	out := &Availability{
		RoomID:           roomID,
		DateFrom:         utils.FormatDate(stay.CheckIn),
		DateTo:           utils.FormatDate(stay.CheckOut),
		ConflictingCount: conflicts,
	}

	past := stay.CheckIn.Before(s.Today())
	out.Available = !past && conflicts == 0 && room.Status == models.RoomStatusAvailable
	if out.Available {
		nights := stay.Nights()
		price := TotalPrice(room.PricePerNight, nights).StringFixed(2)
		out.Nights = &nights
		out.TotalPrice = &price
	}
	return out, nil
}

func (s *BookingService) findRoom(ctx context.Context, roomID uint) (*models.Room, error) {
	if s.Rooms != nil {
		return s.Rooms.FindRoomByID(ctx, roomID)
	}
	var room models.Room
	if err := s.DB.WithContext(ctx).First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, classifyDBError("find room", err)
	}
	return &room, nil
}

// CompleteFinishedStays marks every active booking whose check-out is on or
// before today as completed and returns how many changed.
func (s *BookingService) CompleteFinishedStays(ctx context.Context, today time.Time) (int64, error) {
	today = utils.TruncateDate(today)
	res := s.DB.WithContext(ctx).Model(&models.Booking{}).
		Where("status IN ? AND check_out <= ?",
			[]string{models.BookingStatusPending, models.BookingStatusConfirmed}, today).
		Updates(map[string]interface{}{
			"status":     models.BookingStatusCompleted,
			"updated_at": s.Now().UTC(),
		})
	if res.Error != nil {
		return 0, classifyDBError("complete bookings", res.Error)
	}

	if res.RowsAffected > 0 {
		metrics.AddCompleted(res.RowsAffected)
		s.Logger.Info().Int64("count", res.RowsAffected).Str("date", utils.FormatDate(today)).Msg("bookings completed")
		s.publish(events.BookingCompleted, events.CompletionEvent{
			Date:  utils.FormatDate(today),
			Count: res.RowsAffected,
		})
	}
	return res.RowsAffected, nil
}

// Wait blocks until background post-commit work has finished.
func (s *BookingService) Wait() {
	s.wg.Wait()
}

func (s *BookingService) logFailure(err error, op string, roomID, userID uint) {
	var ev *zerolog.Event
	if IsExpected(err) {
		ev = s.Logger.Debug()
	} else if KindOf(err) == KindTransient {
		ev = s.Logger.Warn()
	} else {
		ev = s.Logger.Error()
	}
	if roomID != 0 {
		ev = ev.Uint("room_id", roomID)
	}
	ev.Err(err).Uint("user_id", userID).Str("code", CodeOf(err)).Msg(op + " failed")
}

func emailData(b models.Booking, room models.Room, user *models.User) utils.BookingEmailData {
	d := utils.BookingEmailData{
		GuestName:    user.Name,
		BookingID:    b.ID,
		RoomName:     room.Name,
		Location:     room.Location,
		CheckInDate:  utils.FormatDate(b.CheckIn),
		CheckOutDate: utils.FormatDate(b.CheckOut),
		Nights:       utils.DaysBetween(b.CheckIn, b.CheckOut),
		TotalPrice:   b.TotalPrice.StringFixed(2),
	}
	if d.GuestName == "" {
		d.GuestName = user.Email
	}
	if b.CancellationReason != nil {
		d.Reason = *b.CancellationReason
	}
	return d
}

func bookingEvent(b models.Booking) events.BookingEvent {
	return events.BookingEvent{
		BookingID:    b.ID,
		UserID:       b.UserID,
		RoomID:       b.RoomID,
		CheckInDate:  utils.FormatDate(b.CheckIn),
		CheckOutDate: utils.FormatDate(b.CheckOut),
		TotalPrice:   b.TotalPrice.StringFixed(2),
		Status:       b.Status,
		Reason:       b.CancellationReason,
	}
}

func (s *BookingService) publish(routingKey string, payload any) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Events.PublishJSON(ctx, routingKey, payload); err != nil {
			s.Logger.Warn().Err(err).Str("routing_key", routingKey).Msg("event publish failed")
		}
	}()
}

// afterCommit runs outside the transaction and never affects the result.
// A nil room is looked up in the background.
func (s *BookingService) afterCommit(routingKey string, b models.Booking, room *models.Room) {
	s.publish(routingKey, bookingEvent(b))

	if s.Notifier == nil || s.Users == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		user, err := s.Users.FindUserByID(ctx, b.UserID)
		if err != nil {
			s.Logger.Warn().Err(err).Uint("booking_id", b.ID).Msg("notification skipped: user lookup failed")
			return
		}
		if room == nil {
			room = &models.Room{ID: b.RoomID}
			if r, rErr := s.findRoom(ctx, b.RoomID); rErr == nil {
				room = r
			}
		}
		d := emailData(b, *room, user)
		if routingKey == events.BookingCancelled {
			s.Notifier.SendBookingCancellation(user.Email, d)
		} else {
			s.Notifier.SendBookingConfirmation(user.Email, d)
		}
	}()
}
