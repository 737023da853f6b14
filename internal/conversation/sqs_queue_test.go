package conversation

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	sent    []*sqs.SendMessageInput
	deleted []string
	inbox   []types.Message
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	n := int(in.MaxNumberOfMessages)
	if n > len(f.inbox) {
		n = len(f.inbox)
	}
	out := f.inbox[:n]
	f.inbox = f.inbox[n:]
	return &sqs.ReceiveMessageOutput{Messages: out}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueueFIFOGroupsBySender(t *testing.T) {
	fake := &fakeSQS{}
	q := newSQSQueue(fake, "https://sqs.eu-south-1.amazonaws.com/123/inbound.fifo")

	require.NoError(t, q.SendGrouped(context.Background(), "{}", "+393331234567", "SM1"))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "+393331234567", aws.ToString(fake.sent[0].MessageGroupId))
	assert.Equal(t, "SM1", aws.ToString(fake.sent[0].MessageDeduplicationId))
}

func TestSQSQueueStandardIgnoresGroups(t *testing.T) {
	fake := &fakeSQS{}
	q := newSQSQueue(fake, "https://sqs.eu-south-1.amazonaws.com/123/inbound")

	require.NoError(t, q.SendGrouped(context.Background(), "{}", "+393331234567", "SM1"))
	assert.Nil(t, fake.sent[0].MessageGroupId)
	assert.Nil(t, fake.sent[0].MessageDeduplicationId)
}

func TestSQSQueueReceiveAndDelete(t *testing.T) {
	fake := &fakeSQS{inbox: []types.Message{
		{MessageId: aws.String("m1"), Body: aws.String("a"), ReceiptHandle: aws.String("r1")},
		{MessageId: aws.String("m2"), Body: aws.String("b"), ReceiptHandle: aws.String("r2")},
	}}
	q := newSQSQueue(fake, "https://sqs.local/inbound")

	msgs, err := q.Receive(context.Background(), 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []queueMessage{
		{ID: "m1", Body: "a", ReceiptHandle: "r1"},
		{ID: "m2", Body: "b", ReceiptHandle: "r2"},
	}, msgs)

	require.NoError(t, q.Delete(context.Background(), "r1"))
	require.NoError(t, q.Delete(context.Background(), ""))
	assert.Equal(t, []string{"r1"}, fake.deleted)
}
