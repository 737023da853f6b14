package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/lesson-booking-agent/internal/config"
	"github.com/wolfman30/lesson-booking-agent/internal/inventory"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// Slot store backends selectable through STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendDynamo   = "dynamodb"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSlotStore opens the shared slot store selected by cfg.StoreBackend. The
// returned cleanup releases any connection pool the store owns.
func BuildSlotStore(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, redisClient *redis.Client, logger *logging.Logger) (inventory.Store, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	noop := func() {}

	switch cfg.StoreBackend {
	case "", BackendMemory:
		logger.Warn("using in-process slot store; seats are not shared across instances")
		return inventory.NewMemoryStore(cfg.StoreMaxRetries), noop, nil
	case BackendRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("bootstrap: redis slot store requires REDIS_ADDR")
		}
		logger.Info("using redis slot store", "addr", cfg.RedisAddr)
		return inventory.NewRedisStore(redisClient, cfg.StoreMaxRetries), noop, nil
	case BackendPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, nil, fmt.Errorf("bootstrap: postgres slot store requires DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		logger.Info("using postgres slot store", "table", cfg.CalendarTable)
		return inventory.NewPostgresStore(pool, cfg.CalendarTable, cfg.StoreMaxRetries), pool.Close, nil
	case BackendDynamo:
		logger.Info("using dynamodb slot store", "table", cfg.CalendarTable)
		return inventory.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.CalendarTable, cfg.StoreMaxRetries), noop, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
