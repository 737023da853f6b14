package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultProcessedTTL = 24 * time.Hour

// RedisProcessedStore remembers handled provider message ids for a day.
type RedisProcessedStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProcessedStore creates a store on client; ttl <= 0 uses one day.
func NewRedisProcessedStore(client *redis.Client, ttl time.Duration) *RedisProcessedStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultProcessedTTL
	}
	return &RedisProcessedStore{client: client, ttl: ttl}
}

// MarkProcessed records messageID and reports whether this was the first time.
func (s *RedisProcessedStore) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, "inbound:processed:"+messageID, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("conversation: mark processed %s: %w", messageID, err)
	}
	return ok, nil
}
