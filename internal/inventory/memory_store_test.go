package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReadWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	_, found, err := store.Read(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Write(ctx, "k", []byte("v1")))
	value, found, err := store.Read(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", string(value))
}

func TestMemoryStoreUpdateRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(5)
	require.NoError(t, store.Write(ctx, "k", []byte("0")))

	races := 2
	store.beforeCommit = func(key string) {
		if races > 0 {
			races--
			_ = store.Write(ctx, key, []byte("raced"))
		}
	}

	calls := 0
	var seen []string
	err := store.Update(ctx, "k", func(current []byte, found bool) ([]byte, error) {
		calls++
		seen = append(seen, string(current))
		return []byte("mine"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"0", "raced", "raced"}, seen)

	value, _, _ := store.Read(ctx, "k")
	assert.Equal(t, "mine", string(value))
}

func TestMemoryStoreUpdateExhausts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)
	store.beforeCommit = func(key string) { _ = store.Write(ctx, key, []byte("raced")) }

	err := store.Update(ctx, "k", func([]byte, bool) ([]byte, error) { return []byte("mine"), nil })
	assert.ErrorIs(t, err, ErrTxExhausted)
}

func TestMemoryStoreUpdateAbortsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.Write(ctx, "k", []byte("keep")))

	boom := errors.New("boom")
	err := store.Update(ctx, "k", func([]byte, bool) ([]byte, error) { return []byte("lost"), boom })
	assert.ErrorIs(t, err, boom)

	err = store.Update(ctx, "k", func([]byte, bool) ([]byte, error) { return nil, ErrUnchanged })
	assert.NoError(t, err)

	value, _, _ := store.Read(ctx, "k")
	assert.Equal(t, "keep", string(value))
}

func TestMemoryStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewMemoryStore(0)
	err := store.Update(ctx, "k", func([]byte, bool) ([]byte, error) { return []byte("x"), nil })
	assert.ErrorIs(t, err, context.Canceled)
}
