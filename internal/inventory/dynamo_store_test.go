package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in memory and evaluates the two conditions the store uses.
type fakeDynamo struct {
	mu                sync.Mutex
	items             map[string]map[string]types.AttributeValue
	puts              []*dynamodb.PutItemInput
	failPuts          int
	getErr            error
	conditionFailures int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeDynamo) GetItem(_ context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	key := input.Key["pk"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, input)
	if f.failPuts > 0 {
		f.failPuts--
		f.conditionFailures++
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conflict")}
	}
	key := input.Item["pk"].(*types.AttributeValueMemberS).Value
	existing, ok := f.items[key]
	switch aws.ToString(input.ConditionExpression) {
	case "attribute_not_exists(pk)":
		if ok {
			f.conditionFailures++
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	case "version = :expected":
		want := input.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN).Value
		if !ok || existing["version"].(*types.AttributeValueMemberN).Value != want {
			f.conditionFailures++
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("stale")}
		}
	}
	f.items[key] = input.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoStoreUpdateLifecycle(t *testing.T) {
	client := newFakeDynamo()
	store := NewDynamoStore(client, "calendar", 0)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, testDayKey, func(current []byte, found bool) ([]byte, error) {
		assert.False(t, found)
		return []byte(`[1]`), nil
	}))
	require.Len(t, client.puts, 1)
	assert.Equal(t, "attribute_not_exists(pk)", aws.ToString(client.puts[0].ConditionExpression))
	assert.Equal(t, "calendar", aws.ToString(client.puts[0].TableName))

	require.NoError(t, store.Update(ctx, testDayKey, func(current []byte, found bool) ([]byte, error) {
		assert.True(t, found)
		assert.Equal(t, "[1]", string(current))
		return []byte(`[2]`), nil
	}))
	assert.Equal(t, "version = :expected", aws.ToString(client.puts[1].ConditionExpression))
	assert.Equal(t, "2", client.items[testDayKey]["version"].(*types.AttributeValueMemberN).Value)

	value, found, err := store.Read(ctx, testDayKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "[2]", string(value))
}

func TestDynamoStoreRetriesConditionalFailures(t *testing.T) {
	client := newFakeDynamo()
	client.failPuts = 2
	store := NewDynamoStore(client, "calendar", 0)

	calls := 0
	err := store.Update(context.Background(), testDayKey, func([]byte, bool) ([]byte, error) {
		calls++
		return []byte(`[]`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, client.conditionFailures)
}

func TestDynamoStoreExhaustsRetries(t *testing.T) {
	client := newFakeDynamo()
	client.failPuts = 100
	store := NewDynamoStore(client, "calendar", 4)

	err := store.Update(context.Background(), testDayKey, func([]byte, bool) ([]byte, error) { return []byte(`[]`), nil })
	assert.ErrorIs(t, err, ErrTxExhausted)
	assert.Len(t, client.puts, 4)
}

func TestDynamoStoreReadError(t *testing.T) {
	client := newFakeDynamo()
	client.getErr = errors.New("throttled")
	store := NewDynamoStore(client, "calendar", 0)

	_, _, err := store.Read(context.Background(), testDayKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestDynamoStoreCoordinatorReservations(t *testing.T) {
	c := newTestCoordinator(NewDynamoStore(newFakeDynamo(), "calendar", 1000), nil)
	got := runConcurrentReservations(t, c, 9)
	assert.Equal(t, int64(6), got)
}
