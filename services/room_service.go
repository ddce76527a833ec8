package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"room-booking/metrics"
	"room-booking/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	roomCachePrefix = "rooms:"
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// RoomService is the Room Directory. Reads of single rooms go through the
// cache when one is configured; the booking transaction never does.
type RoomService struct {
	DB       *gorm.DB
	Cache    *redis.Client
	CacheTTL time.Duration
	Logger   zerolog.Logger
}

func NewRoomService(db *gorm.DB, cache *redis.Client, ttl time.Duration, logger *zerolog.Logger) *RoomService {
	return &RoomService{
		DB:       db,
		Cache:    cache,
		CacheTTL: ttl,
		Logger:   logger.With().Str("component", "rooms").Logger(),
	}
}

// RoomFilter narrows SearchRooms. Zero values mean "no filter".
type RoomFilter struct {
	Location      string
	MinCapacity   int
	MaxPrice      *decimal.Decimal
	Status        string
	AvailableFrom string
	AvailableTo   string
	Page          int
	PageSize      int
}

type RoomPage struct {
	Items    []models.Room `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

// RoomInput carries admin create/update fields. Nil pointers are left untouched on update.
type RoomInput struct {
	Name          *string          `json:"name"`
	Location      *string          `json:"location"`
	Capacity      *int             `json:"capacity"`
	PricePerNight *decimal.Decimal `json:"pricePerNight"`
	Amenities     map[string]bool  `json:"amenities"`
	Images        []string         `json:"images"`
	Status        *string          `json:"status"`
}

func cacheKey(id uint) string {
	return roomCachePrefix + strconv.FormatUint(uint64(id), 10)
}

// FindRoomByID reads through the cache; cache failures fall back to the database.
func (s *RoomService) FindRoomByID(ctx context.Context, id uint) (*models.Room, error) {
	if s.Cache != nil {
		raw, err := s.Cache.Get(ctx, cacheKey(id)).Bytes()
		switch {
		case err == nil:
			var room models.Room
			if jerr := json.Unmarshal(raw, &room); jerr == nil {
				metrics.IncRoomCache("hit")
				return &room, nil
			}
			metrics.IncRoomCache("corrupt")
		case errors.Is(err, redis.Nil):
			metrics.IncRoomCache("miss")
		default:
			metrics.IncRoomCache("error")
			s.Logger.Warn().Err(err).Uint("room_id", id).Msg("room cache read failed")
		}
	}

	var room models.Room
	if err := s.DB.WithContext(ctx).First(&room, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, classifyDBError("find room", err)
	}

	s.storeCache(ctx, &room)
	return &room, nil
}

func (s *RoomService) storeCache(ctx context.Context, room *models.Room) {
	if s.Cache == nil {
		return
	}
	data, err := json.Marshal(room)
	if err != nil {
		return
	}
	if err := s.Cache.Set(ctx, cacheKey(room.ID), data, s.CacheTTL).Err(); err != nil {
		s.Logger.Warn().Err(err).Uint("room_id", room.ID).Msg("room cache write failed")
	}
}

func (s *RoomService) invalidate(ctx context.Context, id uint) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Del(ctx, cacheKey(id)).Err(); err != nil {
		s.Logger.Warn().Err(err).Uint("room_id", id).Msg("room cache invalidate failed")
	}
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// SearchRooms filters rooms; a date window excludes rooms with overlapping active bookings.
func (s *RoomService) SearchRooms(ctx context.Context, f RoomFilter) (*RoomPage, error) {
	page, size := normalizePage(f.Page, f.PageSize)

	q := s.DB.WithContext(ctx).Model(&models.Room{})
	if loc := strings.TrimSpace(f.Location); loc != "" {
		q = q.Where("LOWER(location) LIKE ?", "%"+strings.ToLower(loc)+"%")
	}
	if f.MinCapacity > 0 {
		q = q.Where("capacity >= ?", f.MinCapacity)
	}
	if f.MaxPrice != nil {
		q = q.Where("price_per_night <= ?", *f.MaxPrice)
	}
	if f.Status != "" {
		if !models.IsValidRoomStatus(f.Status) {
			return nil, validationError("unknown room status %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.AvailableFrom != "" || f.AvailableTo != "" {
		stay, err := ParseStayRange(f.AvailableFrom, f.AvailableTo)
		if err != nil {
			return nil, err
		}
		busy := s.DB.WithContext(ctx).Model(&models.Booking{}).
			Select("room_id").
			Where("status <> ? AND check_in < ? AND check_out > ?", models.BookingStatusCancelled, stay.CheckOut, stay.CheckIn)
		q = q.Where("id NOT IN (?)", busy)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, classifyDBError("count rooms", err)
	}

	items := []models.Room{}
	if err := q.Order("id ASC").Offset((page - 1) * size).Limit(size).Find(&items).Error; err != nil {
		return nil, classifyDBError("search rooms", err)
	}

	return &RoomPage{Items: items, Total: total, Page: page, PageSize: size}, nil
}

func applyRoomInput(room *models.Room, in RoomInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return validationError("name is required")
		}
		room.Name = name
	}
	if in.Location != nil {
		room.Location = strings.TrimSpace(*in.Location)
	}
	if in.Capacity != nil {
		if *in.Capacity < 1 {
			return validationError("capacity must be at least 1")
		}
		room.Capacity = *in.Capacity
	}
	if in.PricePerNight != nil {
		if in.PricePerNight.IsNegative() {
			return validationError("pricePerNight must not be negative")
		}
		room.PricePerNight = in.PricePerNight.Round(2)
	}
	if in.Amenities != nil {
		room.Amenities = datatypes.NewJSONType(in.Amenities)
	}
	if in.Images != nil {
		room.Images = datatypes.JSONSlice[string](in.Images)
	}
	if in.Status != nil {
		if !models.IsValidRoomStatus(*in.Status) {
			return validationError("unknown room status %q", *in.Status)
		}
		room.Status = *in.Status
	}
	return nil
}

func (s *RoomService) CreateRoom(ctx context.Context, in RoomInput) (*models.Room, error) {
	if in.Name == nil || in.Capacity == nil || in.PricePerNight == nil {
		return nil, validationError("name, capacity and pricePerNight are required")
	}
	room := models.Room{
		Status:    models.RoomStatusAvailable,
		Amenities: datatypes.NewJSONType(map[string]bool{}),
		Images:    datatypes.JSONSlice[string]{},
	}
	if err := applyRoomInput(&room, in); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Create(&room).Error; err != nil {
		return nil, classifyDBError("create room", err)
	}
	return &room, nil
}

// UpdateRoom takes the same row lock as booking creation so a status flip
// cannot interleave with an in-flight booking on the room.
func (s *RoomService) UpdateRoom(ctx context.Context, id uint, in RoomInput) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRoom(tx, id, &room); err != nil {
			return err
		}
		if err := applyRoomInput(&room, in); err != nil {
			return err
		}
		return tx.Save(&room).Error
	})
	if err != nil {
		return nil, classifyDBError(fmt.Sprintf("update room %d", id), err)
	}
	s.invalidate(ctx, id)
	return &room, nil
}
