package messaging

import (
	"context"

	"github.com/wolfman30/lesson-booking-agent/internal/conversation"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// LogMessenger writes replies to the log instead of sending them. It backs
// local development when no SMS provider is configured.
type LogMessenger struct {
	logger *logging.Logger
}

func NewLogMessenger(logger *logging.Logger) *LogMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMessenger{logger: logger}
}

var _ conversation.ReplyMessenger = (*LogMessenger)(nil)

func (m *LogMessenger) SendReply(_ context.Context, reply conversation.OutboundReply) error {
	m.logger.Info("outbound reply (log only)", "to", reply.To, "from", reply.From, "body", reply.Body)
	return nil
}

// SendSMS logs an owner notification.
func (m *LogMessenger) SendSMS(ctx context.Context, to, body string) error {
	return m.SendReply(ctx, conversation.OutboundReply{To: to, Body: body})
}
