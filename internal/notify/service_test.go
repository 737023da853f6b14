package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/lesson-booking-agent/internal/booking"
)

type mockEmailSender struct {
	sent    []EmailMessage
	callErr error
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockSMSSender struct {
	sent    []struct{ to, body string }
	callErr error
}

func (m *mockSMSSender) SendSMS(ctx context.Context, to, body string) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, struct{ to, body string }{to, body})
	return nil
}

func testBooking() booking.Booking {
	return booking.Booking{
		Reference: "AB12CD34",
		Identity:  "+393331234567",
		Details: booking.Details{
			Discipline: "YOGA",
			Weekday:    "Monday",
			Time:       "19:30",
			Date:       "2026-10-19",
			Name:       "Anna",
			Surname:    "Rossi",
			Phone:      "3331234567",
		},
		RemainingSeats: 11,
		ReservedAt:     time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestNotifyBooking_SendsEmailAndSMS(t *testing.T) {
	email := &mockEmailSender{}
	sms := &mockSMSSender{}
	svc := NewService(email, sms, Config{
		StudioName: "Studio <Test>",
		OwnerEmail: " owner@studio.test ",
		OwnerPhone: "+390000000000",
	}, nil)

	if err := svc.NotifyBooking(context.Background(), testBooking()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(email.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(email.sent))
	}
	msg := email.sent[0]
	if msg.To != "owner@studio.test" {
		t.Errorf("unexpected recipient %q", msg.To)
	}
	if msg.Subject != "New booking: YOGA Monday 19/10/2026 19:30" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"Reference: AB12CD34", "Name: Anna Rossi", "Seats left: 11", "Studio <Test>"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("email body missing %q:\n%s", want, msg.Body)
		}
	}
	if !strings.Contains(msg.HTML, "Studio &lt;Test&gt;") {
		t.Errorf("html body not escaped: %s", msg.HTML)
	}

	if len(sms.sent) != 1 {
		t.Fatalf("expected 1 sms, got %d", len(sms.sent))
	}
	if sms.sent[0].to != "+390000000000" {
		t.Errorf("unexpected sms recipient %q", sms.sent[0].to)
	}
	if !strings.HasPrefix(sms.sent[0].body, "New booking AB12CD34: Anna Rossi (3331234567)") {
		t.Errorf("unexpected sms body %q", sms.sent[0].body)
	}
}

func TestNotifyBooking_SkipsUnconfiguredChannels(t *testing.T) {
	email := &mockEmailSender{}
	sms := &mockSMSSender{}
	svc := NewService(email, sms, Config{}, nil)

	if err := svc.NotifyBooking(context.Background(), testBooking()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(email.sent) != 0 || len(sms.sent) != 0 {
		t.Fatalf("expected no notifications, got %d emails and %d sms", len(email.sent), len(sms.sent))
	}
}

func TestNotifyBooking_NilSenders(t *testing.T) {
	svc := NewService(nil, nil, Config{OwnerEmail: "owner@studio.test", OwnerPhone: "+39000"}, nil)

	if err := svc.NotifyBooking(context.Background(), testBooking()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNotifyBooking_EmailFailureStillSendsSMS(t *testing.T) {
	emailErr := errors.New("sendgrid down")
	email := &mockEmailSender{callErr: emailErr}
	sms := &mockSMSSender{}
	svc := NewService(email, sms, Config{OwnerEmail: "owner@studio.test", OwnerPhone: "+39000"}, nil)

	err := svc.NotifyBooking(context.Background(), testBooking())
	if !errors.Is(err, emailErr) {
		t.Fatalf("expected email error, got %v", err)
	}
	if len(sms.sent) != 1 {
		t.Fatalf("expected sms to be sent, got %d", len(sms.sent))
	}
}

func TestNotifyBooking_JoinsErrors(t *testing.T) {
	emailErr := errors.New("email down")
	smsErr := errors.New("sms down")
	svc := NewService(&mockEmailSender{callErr: emailErr}, &mockSMSSender{callErr: smsErr},
		Config{OwnerEmail: "owner@studio.test", OwnerPhone: "+39000"}, nil)

	err := svc.NotifyBooking(context.Background(), testBooking())
	if !errors.Is(err, emailErr) || !errors.Is(err, smsErr) {
		t.Fatalf("expected both errors, got %v", err)
	}
}
