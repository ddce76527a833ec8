package services

import (
	"context"
	"testing"
	"time"

	"room-booking/logging"
	"room-booking/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedRoomService(t *testing.T) (*RoomService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRoomService(newTestDB(t), rdb, time.Minute, logging.Nop()), mr
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestFindRoomByIDCachesReads(t *testing.T) {
	svc, mr := newCachedRoomService(t)
	ctx := context.Background()
	room := createRoom(t, svc.DB, "120.00", models.RoomStatusAvailable)

	got, err := svc.FindRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Name, got.Name)
	assert.True(t, mr.Exists(cacheKey(room.ID)))
	assert.Equal(t, time.Minute, mr.TTL(cacheKey(room.ID)))

	// served from cache even after the row changes behind its back
	require.NoError(t, svc.DB.Model(&models.Room{}).Where("id = ?", room.ID).Update("name", "Renamed").Error)
	cached, err := svc.FindRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Name, cached.Name)
	assert.True(t, cached.PricePerNight.Equal(decimal.RequireFromString("120")))
	assert.True(t, cached.Amenities.Data()["wifi"])

	mr.FlushAll()
	fresh, err := svc.FindRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fresh.Name)
}

func TestFindRoomByIDSurvivesCacheOutage(t *testing.T) {
	svc, mr := newCachedRoomService(t)
	room := createRoom(t, svc.DB, "120.00", models.RoomStatusAvailable)
	mr.Close()

	got, err := svc.FindRoomByID(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)
}

func TestFindRoomByIDCorruptEntry(t *testing.T) {
	svc, mr := newCachedRoomService(t)
	room := createRoom(t, svc.DB, "120.00", models.RoomStatusAvailable)
	require.NoError(t, mr.Set(cacheKey(room.ID), "{not json"))

	got, err := svc.FindRoomByID(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Name, got.Name)
}

func TestFindRoomByIDNotFound(t *testing.T) {
	svc, _ := newCachedRoomService(t)
	_, err := svc.FindRoomByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestUpdateRoomInvalidatesCache(t *testing.T) {
	svc, mr := newCachedRoomService(t)
	ctx := context.Background()
	room := createRoom(t, svc.DB, "120.00", models.RoomStatusAvailable)

	_, err := svc.FindRoomByID(ctx, room.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cacheKey(room.ID)))

	updated, err := svc.UpdateRoom(ctx, room.ID, RoomInput{
		Status:        strPtr(models.RoomStatusUnavailable),
		PricePerNight: decPtr("99.999"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusUnavailable, updated.Status)
	assert.Equal(t, "100.00", updated.PricePerNight.StringFixed(2))
	assert.False(t, mr.Exists(cacheKey(room.ID)))

	got, err := svc.FindRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusUnavailable, got.Status)

	_, err = svc.UpdateRoom(ctx, room.ID, RoomInput{Status: strPtr("closed")})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.UpdateRoom(ctx, 404, RoomInput{Name: strPtr("x")})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCreateRoom(t *testing.T) {
	svc := NewRoomService(newTestDB(t), nil, 0, logging.Nop())
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, RoomInput{
		Name:          strPtr("  Loft  "),
		Location:      strPtr("Porto"),
		Capacity:      intPtr(3),
		PricePerNight: decPtr("150"),
		Amenities:     map[string]bool{"kitchen": true},
		Images:        []string{"/a.jpg", "/b.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Loft", room.Name)
	assert.Equal(t, models.RoomStatusAvailable, room.Status)

	got, err := svc.FindRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.jpg", "/b.jpg"}, []string(got.Images))
	assert.True(t, got.Amenities.Data()["kitchen"])

	cases := []RoomInput{
		{Name: strPtr("x"), Capacity: intPtr(1)},
		{Name: strPtr(" "), Capacity: intPtr(1), PricePerNight: decPtr("1")},
		{Name: strPtr("x"), Capacity: intPtr(0), PricePerNight: decPtr("1")},
		{Name: strPtr("x"), Capacity: intPtr(1), PricePerNight: decPtr("-1")},
	}
	for _, in := range cases {
		_, err := svc.CreateRoom(ctx, in)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestSearchRooms(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	svc := NewRoomService(f.db, nil, 0, logging.Nop())

	cheap := createRoom(t, f.db, "50.00", models.RoomStatusAvailable)
	pricey := createRoom(t, f.db, "300.00", models.RoomStatusAvailable)
	closed := createRoom(t, f.db, "80.00", models.RoomStatusUnavailable)
	require.NoError(t, f.db.Model(&models.Room{}).Where("id = ?", pricey.ID).Updates(map[string]interface{}{"location": "Porto", "capacity": 6}).Error)

	user := createUser(t, f.db, "u1@example.com")
	_, err := f.svc.CreateBooking(ctx, user.ID, cheap.ID, "2024-01-15", "2024-01-20")
	require.NoError(t, err)

	ids := func(p *RoomPage) []uint {
		out := []uint{}
		for _, r := range p.Items {
			out = append(out, r.ID)
		}
		return out
	}

	all, err := svc.SearchRooms(ctx, RoomFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Equal(t, DefaultPageSize, all.PageSize)

	porto, err := svc.SearchRooms(ctx, RoomFilter{Location: "por"})
	require.NoError(t, err)
	assert.Equal(t, []uint{pricey.ID}, ids(porto))

	big, err := svc.SearchRooms(ctx, RoomFilter{MinCapacity: 4})
	require.NoError(t, err)
	assert.Equal(t, []uint{pricey.ID}, ids(big))

	affordable, err := svc.SearchRooms(ctx, RoomFilter{MaxPrice: decPtr("100")})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{cheap.ID, closed.ID}, ids(affordable))

	open, err := svc.SearchRooms(ctx, RoomFilter{Status: models.RoomStatusAvailable})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{cheap.ID, pricey.ID}, ids(open))

	free, err := svc.SearchRooms(ctx, RoomFilter{AvailableFrom: "2024-01-18", AvailableTo: "2024-01-19"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{pricey.ID, closed.ID}, ids(free))

	after, err := svc.SearchRooms(ctx, RoomFilter{AvailableFrom: "2024-01-20", AvailableTo: "2024-01-21"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), after.Total)

	paged, err := svc.SearchRooms(ctx, RoomFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), paged.Total)
	assert.Len(t, paged.Items, 1)

	capped, err := svc.SearchRooms(ctx, RoomFilter{PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, capped.PageSize)

	_, err = svc.SearchRooms(ctx, RoomFilter{Status: "closed"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.SearchRooms(ctx, RoomFilter{AvailableFrom: "2024-01-18"})
	assert.ErrorIs(t, err, ErrInvalidDate)
	f.svc.Wait()
}
