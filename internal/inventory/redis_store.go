package inventory

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore implements Store with WATCH/MULTI optimistic transactions.
type RedisStore struct {
	client     *redis.Client
	maxRetries int
	tracer     trace.Tracer
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps a go-redis client.
func NewRedisStore(client *redis.Client, maxRetries int) *RedisStore {
	if client == nil {
		panic("inventory: redis client cannot be nil")
	}
	return &RedisStore{
		client:     client,
		maxRetries: maxRetries,
		tracer:     otel.Tracer("lessons.internal.inventory.redis"),
	}
}

func (s *RedisStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.redis.read")
	defer span.End()

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, wrapStoreErr("read", key, err)
	}
	return data, true, nil
}

func (s *RedisStore) Write(ctx context.Context, key string, value []byte) error {
	ctx, span := s.tracer.Start(ctx, "inventory.redis.write")
	defer span.End()

	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		span.RecordError(err)
		return wrapStoreErr("write", key, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	ctx, span := s.tracer.Start(ctx, "inventory.redis.update")
	defer span.End()

	err := retryOptimistic(ctx, s.maxRetries, func() error {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Bytes()
			found := true
			if errors.Is(err, redis.Nil) {
				current, found = nil, false
			} else if err != nil {
				return err
			}

			next, err := fn(current, found)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, 0)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			return errConflict
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrNoCapacity) && !errors.Is(err, ErrSlotNotFound) {
		span.RecordError(err)
	}
	return wrapStoreErr("update", key, err)
}
