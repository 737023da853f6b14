// Package notify tells the studio owner about completed bookings.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/lesson-booking-agent/internal/booking"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// SMSSender sends SMS messages to the owner.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Config names the owner contacts. Empty values disable that channel.
type Config struct {
	StudioName string
	OwnerEmail string
	OwnerPhone string
}

// Service sends booking notifications to the studio owner.
type Service struct {
	email  EmailSender
	sms    SMSSender
	cfg    Config
	logger *logging.Logger
}

// NewService creates a notification service. email and sms may be nil.
func NewService(email EmailSender, sms SMSSender, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	cfg.OwnerEmail = strings.TrimSpace(cfg.OwnerEmail)
	cfg.OwnerPhone = strings.TrimSpace(cfg.OwnerPhone)
	return &Service{
		email:  email,
		sms:    sms,
		cfg:    cfg,
		logger: logger,
	}
}

// NotifyBooking emails and texts the owner about b. Both channels are tried;
// the returned error joins every channel that failed.
func (s *Service) NotifyBooking(ctx context.Context, b booking.Booking) error {
	var errs []error

	if s.email != nil && s.cfg.OwnerEmail != "" {
		msg, err := s.bookingEmail(b)
		if err == nil {
			err = s.email.Send(ctx, msg)
		}
		if err != nil {
			s.logger.Error("notify: booking email failed", "error", err, "reference", b.Reference)
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	if s.sms != nil && s.cfg.OwnerPhone != "" {
		body, err := booking.Render(booking.TemplateOwnerSMS, b, s.cfg.StudioName)
		if err == nil {
			err = s.sms.SendSMS(ctx, s.cfg.OwnerPhone, body)
		}
		if err != nil {
			s.logger.Error("notify: owner sms failed", "error", err, "reference", b.Reference)
			errs = append(errs, fmt.Errorf("sms: %w", err))
		}
	}

	if len(errs) == 0 {
		s.logger.Info("notify: booking notifications sent", "reference", b.Reference)
	}
	return errors.Join(errs...)
}

func (s *Service) bookingEmail(b booking.Booking) (EmailMessage, error) {
	subject, err := booking.Render(booking.TemplateSubject, b, s.cfg.StudioName)
	if err != nil {
		return EmailMessage{}, err
	}
	body, err := booking.Render(booking.TemplateEmail, b, s.cfg.StudioName)
	if err != nil {
		return EmailMessage{}, err
	}
	return EmailMessage{
		To:      s.cfg.OwnerEmail,
		ToName:  s.cfg.StudioName,
		Subject: subject,
		Body:    body,
		HTML:    plainToHTML(body),
	}, nil
}

func plainToHTML(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = html.EscapeString(line)
	}
	return `<div style="font-family: sans-serif; max-width: 600px;">` +
		strings.Join(lines, "<br>") + `</div>`
}
