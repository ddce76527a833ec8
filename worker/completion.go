package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StayCompleter marks confirmed bookings whose check-out has passed as completed.
type StayCompleter interface {
	Today() time.Time
	CompleteFinishedStays(ctx context.Context, today time.Time) (int64, error)
}

// CompletionSweeper runs the completion pass once at start and then on every tick.
type CompletionSweeper struct {
	Bookings StayCompleter
	Interval time.Duration
	Logger   zerolog.Logger
}

func NewCompletionSweeper(bookings StayCompleter, interval time.Duration, logger *zerolog.Logger) *CompletionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CompletionSweeper{
		Bookings: bookings,
		Interval: interval,
		Logger:   logger.With().Str("component", "completion_sweeper").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (s *CompletionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Logger.Info().Dur("interval", s.Interval).Msg("completion sweeper started")
	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info().Msg("completion sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *CompletionSweeper) sweep(ctx context.Context) {
	if _, err := s.Bookings.CompleteFinishedStays(ctx, s.Bookings.Today()); err != nil && ctx.Err() == nil {
		s.Logger.Error().Err(err).Msg("complete finished stays")
	}
}
