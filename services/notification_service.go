package services

import (
	"context"
	"fmt"
	"net/smtp"
	"sync"
	"time"

	"room-booking/config"
	"room-booking/metrics"
	"room-booking/utils"

	"github.com/rs/zerolog"
)

// Mailer delivers one rendered email.
type Mailer interface {
	Send(ctx context.Context, msg utils.Email) error
}

// SMTPMailer sends through net/smtp with PLAIN auth. Without SMTP settings it
// only logs the message.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger zerolog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		logger: logger.With().Str("component", "mailer").Logger(),
		send:   smtp.SendMail,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg utils.Email) error {
	if !m.cfg.Enabled() {
		m.logger.Info().
			Str("to", utils.MaskEmail(msg.To)).
			Str("subject", msg.Subject).
			Msg("[MOCK EMAIL] smtp not configured")
		return nil
	}

	from := fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.Username)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)

	// net/smtp has no context support; run it aside so the deadline still applies.
	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.cfg.Username, []string{msg.To}, msg.MIME(from))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const (
	notifyConfirmation = "confirmation"
	notifyCancellation = "cancellation"
)

// NotificationService is the Notification Sender. Every send runs in its own
// goroutine with bounded retries; failures are logged and counted, never returned.
type NotificationService struct {
	Mailer   Mailer
	Policy   utils.RetryPolicy
	Timeout  time.Duration
	FromName string
	Logger   zerolog.Logger

	sleep func(time.Duration)
	wg    sync.WaitGroup
}

func NewNotificationService(mailer Mailer, cfg config.NotificationConfig, fromName string, logger *zerolog.Logger) *NotificationService {
	return &NotificationService{
		Mailer: mailer,
		Policy: utils.RetryPolicy{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			BackoffFactor: cfg.BackoffFactor,
		},
		Timeout:  cfg.Timeout,
		FromName: fromName,
		Logger:   logger.With().Str("component", "notifications").Logger(),
		sleep:    time.Sleep,
	}
}

func (n *NotificationService) SendBookingConfirmation(email string, d utils.BookingEmailData) {
	n.dispatch(notifyConfirmation, utils.BookingConfirmationEmail(email, n.FromName, d), d.BookingID)
}

func (n *NotificationService) SendBookingCancellation(email string, d utils.BookingEmailData) {
	n.dispatch(notifyCancellation, utils.BookingCancellationEmail(email, n.FromName, d), d.BookingID)
}

// Wait blocks until all in-flight sends have finished.
func (n *NotificationService) Wait() {
	n.wg.Wait()
}

func (n *NotificationService) dispatch(kind string, msg utils.Email, bookingID uint) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.IncNotification(kind, "failed")
				n.Logger.Error().Interface("panic", r).Str("kind", kind).Msg("notification panicked")
			}
		}()
		n.deliver(kind, msg, bookingID)
	}()
}

func (n *NotificationService) attemptTimeout() time.Duration {
	if n.Timeout <= 0 {
		return 10 * time.Second
	}
	return n.Timeout
}

func (n *NotificationService) deliver(kind string, msg utils.Email, bookingID uint) {
	attempts := n.Policy.Attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), n.attemptTimeout())
		lastErr = n.Mailer.Send(ctx, msg)
		cancel()

		if lastErr == nil {
			metrics.IncNotification(kind, "sent")
			n.Logger.Debug().Str("kind", kind).Uint("booking_id", bookingID).Int("attempt", attempt).Msg("notification sent")
			return
		}

		n.Logger.Warn().Err(lastErr).
			Str("kind", kind).
			Uint("booking_id", bookingID).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("notification attempt failed")

		if attempt < attempts {
			n.sleep(n.Policy.NextDelay(attempt - 1))
		}
	}

	metrics.IncNotification(kind, "failed")
	n.Logger.Warn().Err(lastErr).
		Str("kind", kind).
		Uint("booking_id", bookingID).
		Str("to", utils.MaskEmail(msg.To)).
		Msg("notification dropped after retries")
}
