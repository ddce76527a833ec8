package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"room-booking/config"
	"room-booking/logging"
	"room-booking/models"
	"room-booking/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := config.OpenDatabase(config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		DSN:      dsn,
		LogLevel: "silent",
	}, logging.Nop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func createRoom(t *testing.T, db *gorm.DB, price string, status string) models.Room {
	t.Helper()
	room := models.Room{
		Name:          "Room " + uuid.NewString()[:8],
		Location:      "Lisbon",
		Capacity:      2,
		PricePerNight: decimal.RequireFromString(price),
		Amenities:     datatypes.NewJSONType(map[string]bool{"wifi": true}),
		Images:        datatypes.JSONSlice[string]{},
		Status:        status,
	}
	require.NoError(t, db.Create(&room).Error)
	return room
}

func createUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{Email: email, Name: "Guest", PasswordHash: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(&user).Error)
	return user
}

type sentMail struct {
	Kind  string
	Email string
	Data  utils.BookingEmailData
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeNotifier) SendBookingConfirmation(email string, d utils.BookingEmailData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{Kind: "confirmation", Email: email, Data: d})
}

func (f *fakeNotifier) SendBookingCancellation(email string, d utils.BookingEmailData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{Kind: "cancellation", Email: email, Data: d})
}

func (f *fakeNotifier) all() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}

type publishedEvent struct {
	Key     string
	Payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (f *fakePublisher) PublishJSON(_ context.Context, key string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{Key: key, Payload: payload})
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Key)
	}
	return out
}

type bookingFixture struct {
	db        *gorm.DB
	svc       *BookingService
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	db := newTestDB(t)
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	rooms := NewRoomService(db, nil, 0, logging.Nop())
	users := NewUserService(db, 4, logging.Nop())
	svc := NewBookingService(db, rooms, users, notifier, publisher, logging.Nop())
	svc.Now = fixedClock
	return &bookingFixture{db: db, svc: svc, notifier: notifier, publisher: publisher}
}
