package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxRetries bounds optimistic transaction attempts.
const DefaultMaxRetries = 10

var (
	// ErrUnchanged can be returned by an UpdateFunc to commit nothing.
	ErrUnchanged = errors.New("inventory: unchanged")
	// ErrTxExhausted is returned when every attempt lost to a concurrent writer.
	ErrTxExhausted = errors.New("inventory: transaction retries exhausted")

	errConflict = errors.New("inventory: concurrent modification")
)

// UpdateFunc computes the next value of a key from its current value. It may be
// called several times and must not have side effects.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// Store is the transactional key-value primitive the coordinator is built on.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, value []byte) error
	// Update runs fn and commits its result only if key was not modified in
	// between, retrying fn until it commits or the retry budget runs out.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// retryOptimistic runs attempt until it stops reporting a conflict.
func retryOptimistic(ctx context.Context, maxRetries int, attempt func() error) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	for i := 0; i < maxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := attempt()
		switch {
		case err == nil, errors.Is(err, ErrUnchanged):
			return nil
		case errors.Is(err, errConflict):
			continue
		default:
			return err
		}
	}
	return ErrTxExhausted
}

type memoryRecord struct {
	value   []byte
	version int64
}

// MemoryStore is an in-process Store with versioned optimistic commits.
type MemoryStore struct {
	mu         sync.Mutex
	records    map[string]memoryRecord
	maxRetries int

	// beforeCommit runs between fn and the version check; tests use it to race a writer.
	beforeCommit func(key string)
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(maxRetries int) *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord), maxRetries: maxRetries}
}

func (s *MemoryStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), rec.value...), true, nil
}

func (s *MemoryStore) Write(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[key]
	s.records[key] = memoryRecord{value: append([]byte(nil), value...), version: rec.version + 1}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return retryOptimistic(ctx, s.maxRetries, func() error {
		s.mu.Lock()
		rec, found := s.records[key]
		current := append([]byte(nil), rec.value...)
		s.mu.Unlock()

		next, err := fn(current, found)
		if err != nil {
			return err
		}
		if s.beforeCommit != nil {
			s.beforeCommit(key)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		latest, stillFound := s.records[key]
		if stillFound != found || latest.version != rec.version {
			return errConflict
		}
		s.records[key] = memoryRecord{value: append([]byte(nil), next...), version: rec.version + 1}
		return nil
	})
}

func wrapStoreErr(op, key string, err error) error {
	if err == nil || errors.Is(err, ErrNoCapacity) || errors.Is(err, ErrSlotNotFound) || errors.Is(err, ErrTxExhausted) {
		return err
	}
	return fmt.Errorf("inventory: %s %s: %w", op, key, err)
}
