package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// groupedSender is implemented by queues that keep per-sender ordering.
type groupedSender interface {
	SendGrouped(ctx context.Context, body, group, dedupID string) error
}

// Publisher enqueues inbound texts for the conversation workers.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueInbound publishes msg and returns the job id.
func (p *Publisher) EnqueueInbound(ctx context.Context, msg InboundMessage) (string, error) {
	if msg.From == "" {
		return "", errors.New("conversation: inbound message has no sender")
	}

	job, body, err := encodeJob(inboundJob{Message: msg})
	if err != nil {
		return "", err
	}

	if grouped, ok := p.queue.(groupedSender); ok {
		err = grouped.SendGrouped(ctx, body, normalizeIdentity(msg.From), job.ID)
	} else {
		err = p.queue.Send(ctx, body)
	}
	if err != nil {
		return "", fmt.Errorf("conversation: failed to enqueue message: %w", err)
	}

	p.logger.Debug("inbound message enqueued", "job_id", job.ID, "from", msg.From)
	return job.ID, nil
}
