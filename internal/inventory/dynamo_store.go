package inventory

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type dayRecord struct {
	Key       string `dynamodbav:"pk"`
	Slots     string `dynamodbav:"slots"`
	Version   int64  `dynamodbav:"version"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

// DynamoStore commits with conditional puts on a version attribute.
type DynamoStore struct {
	client     dynamoAPI
	tableName  string
	maxRetries int
	now        func() time.Time
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store on a table whose partition key is "pk".
func NewDynamoStore(client dynamoAPI, tableName string, maxRetries int) *DynamoStore {
	if client == nil {
		panic("inventory: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("inventory: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName, maxRetries: maxRetries, now: time.Now}
}

func (s *DynamoStore) get(ctx context.Context, key string) (*dayRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec dayRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *DynamoStore) put(ctx context.Context, rec dayRecord, condition string, values map[string]types.AttributeValue) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return err
	}
	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if condition != "" {
		input.ConditionExpression = aws.String(condition)
		input.ExpressionAttributeValues = values
	}
	_, err = s.client.PutItem(ctx, input)
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return errConflict
	}
	return err
}

func (s *DynamoStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	rec, err := s.get(ctx, key)
	if err != nil {
		return nil, false, wrapStoreErr("read", key, err)
	}
	if rec == nil {
		return nil, false, nil
	}
	return []byte(rec.Slots), true, nil
}

func (s *DynamoStore) Write(ctx context.Context, key string, value []byte) error {
	return s.Update(ctx, key, func([]byte, bool) ([]byte, error) { return value, nil })
}

func (s *DynamoStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	err := retryOptimistic(ctx, s.maxRetries, func() error {
		rec, err := s.get(ctx, key)
		if err != nil {
			return err
		}
		var current []byte
		if rec != nil {
			current = []byte(rec.Slots)
		}
		next, err := fn(current, rec != nil)
		if err != nil {
			return err
		}

		updated := dayRecord{Key: key, Slots: string(next), Version: 1, UpdatedAt: s.now().UTC().Format(time.RFC3339)}
		if rec == nil {
			return s.put(ctx, updated, "attribute_not_exists(pk)", nil)
		}
		updated.Version = rec.Version + 1
		return s.put(ctx, updated, "version = :expected", map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.Version, 10)},
		})
	})
	return wrapStoreErr("update", key, err)
}
