package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"room-booking/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// OverlapGuardName is the trigger that rejects overlapping active bookings
// even if the room lock is bypassed. Its abort message is OverlapGuardMessage.
const (
	OverlapGuardName    = "bookings_no_overlap"
	OverlapGuardMessage = "booking_overlap"
)

func envOrDefault(key, def string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	return value
}

func mysqlDSNFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "3306"
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", fmt.Errorf("mysql url missing database name")
	}

	q := u.Query()
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "True")
	}
	if q.Get("loc") == "" {
		q.Set("loc", "UTC")
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, host, port, dbName, q.Encode()), nil
}

func resolveMySQLDSN(cfg DatabaseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("MYSQL_URL"))
	}
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if raw != "" {
		if strings.HasPrefix(raw, "mysql://") {
			return mysqlDSNFromURL(raw)
		}
		return raw, nil
	}

	user := firstNonEmpty(cfg.User, envOrDefault("DB_USER", "root"))
	pass := firstNonEmpty(cfg.Password, os.Getenv("DB_PASS"))
	host := firstNonEmpty(cfg.Host, envOrDefault("DB_HOST", "127.0.0.1"))
	port := firstNonEmpty(cfg.Port, envOrDefault("DB_PORT", "3306"))
	dbName := firstNonEmpty(cfg.Name, envOrDefault("DB_NAME", "room_booking"))

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		user, pass, host, port, dbName,
	), nil
}

// sqliteDSN makes sure every transaction starts with BEGIN IMMEDIATE, so two
// booking transactions can never both read before either writes.
func sqliteDSN(raw string) string {
	if raw == "" {
		raw = "file:room_booking.db"
	}
	params := []string{"_txlock=immediate", "_busy_timeout=5000", "_foreign_keys=on"}
	for _, p := range params {
		key := p[:strings.Index(p, "=")+1]
		if strings.Contains(raw, key) {
			continue
		}
		if strings.Contains(raw, "?") {
			raw += "&" + p
		} else {
			raw += "?" + p
		}
	}
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func dialector(cfg DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return sqlite.Open(sqliteDSN(cfg.DSN)), nil
	case DriverMySQL, "":
		dsn, err := resolveMySQLDSN(cfg)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// gormWriter routes gorm's slow-query and error lines into zerolog.
type gormWriter struct {
	logger zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn().Msgf(format, args...)
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// OpenDatabase connects, migrates the schema and installs the overlap guard.
func OpenDatabase(cfg DatabaseConfig, logger *zerolog.Logger) (*gorm.DB, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	newLogger := gormlogger.New(
		gormWriter{logger: logger.With().Str("component", "gorm").Logger()},
		gormlogger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(dial, &gorm.Config{Logger: newLogger, TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get raw sql.DB: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// SQLite has no row locks: a single connection serializes writers.
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Room{},
		&models.Booking{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	installOverlapGuard(db, cfg.Driver, logger)

	return db, nil
}

func installOverlapGuard(db *gorm.DB, driver string, logger *zerolog.Logger) {
	switch driver {
	case DriverSQLite:
		stmt := fmt.Sprintf(`
CREATE TRIGGER IF NOT EXISTS %s BEFORE INSERT ON bookings
FOR EACH ROW WHEN NEW.status <> '%s' AND EXISTS (
	SELECT 1 FROM bookings b
	WHERE b.room_id = NEW.room_id AND b.status <> '%s'
	  AND b.check_in < NEW.check_out AND b.check_out > NEW.check_in
)
BEGIN
	SELECT RAISE(ABORT, '%s');
END;`, OverlapGuardName, models.BookingStatusCancelled, models.BookingStatusCancelled, OverlapGuardMessage)
		if err := db.Exec(stmt).Error; err != nil {
			logger.Warn().Err(err).Msg("install overlap guard")
		}
	case DriverMySQL:
		var count int64
		if err := db.Raw(
			"SELECT COUNT(*) FROM information_schema.TRIGGERS WHERE TRIGGER_SCHEMA = DATABASE() AND TRIGGER_NAME = ?",
			OverlapGuardName,
		).Scan(&count).Error; err != nil {
			logger.Info().Err(err).Msg("cannot inspect information_schema for overlap guard")
			return
		}
		if count > 0 {
			return
		}
		stmt := fmt.Sprintf(`
CREATE TRIGGER %s BEFORE INSERT ON bookings
FOR EACH ROW
BEGIN
	IF NEW.status <> '%s' AND EXISTS (
		SELECT 1 FROM bookings b
		WHERE b.room_id = NEW.room_id AND b.status <> '%s'
		  AND b.check_in < NEW.check_out AND b.check_out > NEW.check_in
	) THEN
		SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = '%s';
	END IF;
END`, OverlapGuardName, models.BookingStatusCancelled, models.BookingStatusCancelled, OverlapGuardMessage)
		if err := db.Exec(stmt).Error; err != nil {
			// usually missing TRIGGER privilege; the room lock still protects bookings
			logger.Warn().Err(err).Msg("install overlap guard")
		}
	}
}

// SeedRooms inserts a few sample rooms when the table is empty.
func SeedRooms(db *gorm.DB, logger *zerolog.Logger) {
	var count int64
	if err := db.Model(&models.Room{}).Count(&count).Error; err != nil {
		logger.Warn().Err(err).Msg("count rooms for seeding")
		return
	}
	if count > 0 {
		return
	}

	rooms := []models.Room{
		{
			Name:          "Harbour View Double",
			Location:      "Lisbon",
			Capacity:      2,
			PricePerNight: decimal.RequireFromString("120.00"),
			Amenities:     datatypes.NewJSONType(map[string]bool{"wifi": true, "balcony": true}),
			Images:        datatypes.JSONSlice[string]{"/images/harbour-double.jpg"},
			Status:        models.RoomStatusAvailable,
		},
		{
			Name:          "Old Town Suite",
			Location:      "Lisbon",
			Capacity:      4,
			PricePerNight: decimal.RequireFromString("245.50"),
			Amenities:     datatypes.NewJSONType(map[string]bool{"wifi": true, "kitchen": true}),
			Images:        datatypes.JSONSlice[string]{"/images/old-town-suite.jpg"},
			Status:        models.RoomStatusAvailable,
		},
		{
			Name:          "Garden Single",
			Location:      "Porto",
			Capacity:      1,
			PricePerNight: decimal.RequireFromString("79.90"),
			Amenities:     datatypes.NewJSONType(map[string]bool{"wifi": true}),
			Images:        datatypes.JSONSlice[string]{},
			Status:        models.RoomStatusAvailable,
		},
	}
	if err := db.Create(&rooms).Error; err != nil {
		logger.Warn().Err(err).Msg("seed rooms")
		return
	}
	logger.Info().Int("count", len(rooms)).Msg("rooms seeded")
}
