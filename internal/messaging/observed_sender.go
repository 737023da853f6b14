package messaging

import (
	"context"

	"github.com/wolfman30/lesson-booking-agent/internal/conversation"
)

// OutboundObserver records the outcome of each send.
type OutboundObserver interface {
	ObserveOutbound(status string)
}

// ObservedSender counts sends of the wrapped Sender.
type ObservedSender struct {
	next     Sender
	observer OutboundObserver
}

func NewObservedSender(next Sender, observer OutboundObserver) *ObservedSender {
	return &ObservedSender{next: next, observer: observer}
}

func (s *ObservedSender) SendReply(ctx context.Context, reply conversation.OutboundReply) error {
	return s.observe(s.next.SendReply(ctx, reply))
}

func (s *ObservedSender) SendSMS(ctx context.Context, to, body string) error {
	return s.observe(s.next.SendSMS(ctx, to, body))
}

func (s *ObservedSender) observe(err error) error {
	if s.observer == nil {
		return err
	}
	if err != nil {
		s.observer.ObserveOutbound("failed")
	} else {
		s.observer.ObserveOutbound("sent")
	}
	return err
}
