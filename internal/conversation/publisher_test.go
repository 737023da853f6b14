package conversation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

func TestPublisherEnqueueInbound(t *testing.T) {
	queue := &stubQueue{}
	publisher := NewPublisher(queue, logging.Discard())

	jobID, err := publisher.EnqueueInbound(context.Background(), InboundMessage{
		MessageID: "SM123",
		From:      "+393331234567",
		To:        "+391111111111",
		Body:      "ciao",
	})
	require.NoError(t, err)
	assert.Equal(t, "SM123", jobID)
	require.Len(t, queue.sent, 1)

	var job inboundJob
	require.NoError(t, json.Unmarshal([]byte(queue.sent[0]), &job))
	assert.Equal(t, "SM123", job.ID)
	assert.Equal(t, "ciao", job.Message.Body)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestPublisherGeneratesJobIDWithoutMessageID(t *testing.T) {
	queue := &stubQueue{}
	publisher := NewPublisher(queue, nil)

	jobID, err := publisher.EnqueueInbound(context.Background(), InboundMessage{From: "+393331234567", Body: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
}

func TestPublisherRejectsMissingSender(t *testing.T) {
	publisher := NewPublisher(&stubQueue{}, nil)

	_, err := publisher.EnqueueInbound(context.Background(), InboundMessage{Body: "hi"})
	require.Error(t, err)
}

func TestPublisherUsesMessageGroups(t *testing.T) {
	queue := &groupedQueue{}
	publisher := NewPublisher(queue, nil)

	_, err := publisher.EnqueueInbound(context.Background(), InboundMessage{MessageID: "SM9", From: " +393331234567 ", Body: "hi"})
	require.NoError(t, err)
	assert.Empty(t, queue.sent)
	assert.Equal(t, []string{"+393331234567"}, queue.groups)
	assert.Equal(t, []string{"SM9"}, queue.dedup)
}

type stubQueue struct {
	sent []string
}

func (s *stubQueue) Send(ctx context.Context, body string) error {
	s.sent = append(s.sent, body)
	return nil
}

func (s *stubQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	return nil, context.Canceled
}

func (s *stubQueue) Delete(ctx context.Context, receiptHandle string) error {
	return nil
}

type groupedQueue struct {
	stubQueue
	groups []string
	dedup  []string
}

func (g *groupedQueue) SendGrouped(ctx context.Context, body, group, dedupID string) error {
	g.groups = append(g.groups, group)
	g.dedup = append(g.dedup, dedupID)
	return nil
}
