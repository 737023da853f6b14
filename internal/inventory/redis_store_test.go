package inventory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisStoreReadWrite(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, 0)
	ctx := context.Background()

	_, found, err := store.Read(ctx, "calendar:2026-10-19")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Write(ctx, "calendar:2026-10-19", []byte(`[]`)))
	got, err := mr.Get("calendar:2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "[]", got)
}

func TestRedisStoreUpdateUnchangedSkipsWrite(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, 0)
	ctx := context.Background()

	require.NoError(t, mr.Set("k", "v"))
	err := store.Update(ctx, "k", func(current []byte, found bool) ([]byte, error) {
		assert.True(t, found)
		assert.Equal(t, "v", string(current))
		return nil, ErrUnchanged
	})
	require.NoError(t, err)
	got, _ := mr.Get("k")
	assert.Equal(t, "v", got)
}

func TestRedisStoreCoordinatorFlow(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := newTestCoordinator(NewRedisStore(client, 1000), nil)
	ctx := context.Background()

	_, err := c.EnsureSeeded(ctx, monday, monday)
	require.NoError(t, err)

	got := runConcurrentReservations(t, c, 10)
	assert.Equal(t, int64(6), got)

	_, err = c.EnsureSeeded(ctx, monday, monday)
	require.NoError(t, err)
	slots, err := c.AvailableSlots(ctx, "2026-10-19")
	require.NoError(t, err)
	for _, s := range slots {
		if s.Discipline == "PILATES REFORMER" {
			assert.Equal(t, 0, s.RemainingSeats)
		} else {
			assert.Equal(t, s.Capacity, s.RemainingSeats)
		}
	}
}
