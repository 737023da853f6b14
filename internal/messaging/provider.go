package messaging

import (
	"context"
	"strings"

	"github.com/wolfman30/lesson-booking-agent/internal/conversation"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// Sender is both the dialogue reply channel and the owner SMS channel.
type Sender interface {
	conversation.ReplyMessenger
	SendSMS(ctx context.Context, to, body string) error
}

// ProviderConfig captures the credentials required to build an outbound sender.
type ProviderConfig struct {
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// BuildSender returns a Twilio sender when credentials are complete and a log
// sender otherwise, along with the provider name that was selected.
func BuildSender(cfg ProviderConfig, logger *logging.Logger) (Sender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.TwilioAccountSID) == "" || strings.TrimSpace(cfg.TwilioAuthToken) == "" {
		logger.Warn("twilio credentials missing; replies will only be logged")
		return NewLogMessenger(logger), "log"
	}
	if strings.TrimSpace(cfg.TwilioFromNumber) == "" {
		logger.Warn("TWILIO_FROM_NUMBER not set; replies reuse the inbound destination number")
	}
	return NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, NormalizeE164(cfg.TwilioFromNumber), logger), "twilio"
}
