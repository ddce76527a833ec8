package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"room-booking/config"
	"room-booking/events"
	"room-booking/logging"
	"room-booking/metrics"
	"room-booking/routes"
	"room-booking/services"
	"room-booking/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "room-booking: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	db, err := config.OpenDatabase(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		defer sqlDB.Close()
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database connection established and migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userService := services.NewUserService(db, cfg.Auth.BcryptCost, logger)
	if admin, err := userService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	} else if admin != nil {
		logger.Info().Uint("user_id", admin.ID).Msg("admin account ready")
	}
	if cfg.Database.Seed {
		config.SeedRooms(db, logger)
	}

	cache := openRedis(ctx, cfg.Redis, logger)
	if cache != nil {
		defer cache.Close()
	}

	publisher := openPublisher(cfg.RabbitMQ, logger)
	defer publisher.Close()

	mailer := services.NewSMTPMailer(cfg.SMTP, logger)
	notifier := services.NewNotificationService(mailer, cfg.Notifications, cfg.SMTP.FromName, logger)
	roomService := services.NewRoomService(db, cache, cfg.Redis.RoomCacheTTL, logger)
	tokenService := services.NewTokenService(db, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	bookingService := services.NewBookingService(db, roomService, userService, notifier, publisher, logger)

	if cfg.Monitoring.MetricsEnabled {
		metrics.Register()
	}

	router := routes.SetupRouter(routes.Deps{
		DB:             db,
		Logger:         logger,
		Users:          userService,
		Tokens:         tokenService,
		Rooms:          roomService,
		Bookings:       bookingService,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		MetricsEnabled: cfg.Monitoring.MetricsEnabled,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		worker.NewCompletionSweeper(bookingService, cfg.Booking.CompletionInterval, logger).Run(sweeperCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received, shutting down server")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("listen failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	stopSweeper()
	<-sweeperDone
	bookingService.Wait()
	notifier.Wait()

	logger.Info().Msg("server stopped gracefully")
	return nil
}

// openRedis returns nil when no address is configured or the server is
// unreachable; the room cache is then bypassed.
func openRedis(ctx context.Context, cfg config.RedisConfig, logger *zerolog.Logger) *redis.Client {
	if cfg.Address == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Address).Msg("redis unreachable, room cache disabled")
		_ = client.Close()
		return nil
	}
	logger.Info().Str("addr", cfg.Address).Msg("redis connected")
	return client
}

func openPublisher(cfg config.RabbitMQConfig, logger *zerolog.Logger) events.Publisher {
	if cfg.URL == "" {
		logger.Info().Msg("rabbitmq not configured, booking events disabled")
		return events.NopPublisher{}
	}
	p, err := events.NewAMQPPublisher(cfg.URL, cfg.Exchange, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq unavailable, booking events disabled")
		return events.NopPublisher{}
	}
	return p
}
