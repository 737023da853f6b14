package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue is the transport shared by the Publisher and the Worker.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// inboundJob is the envelope of one inbound text on the queue.
type inboundJob struct {
	ID         string         `json:"id"`
	Message    InboundMessage `json:"message"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

func encodeJob(job inboundJob) (inboundJob, string, error) {
	if job.ID == "" {
		job.ID = job.Message.MessageID
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return inboundJob{}, "", fmt.Errorf("conversation: failed to encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (inboundJob, error) {
	var job inboundJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return inboundJob{}, fmt.Errorf("conversation: failed to decode job: %w", err)
	}
	if job.Message.From == "" {
		return inboundJob{}, fmt.Errorf("conversation: job %q has no sender", job.ID)
	}
	return job, nil
}
