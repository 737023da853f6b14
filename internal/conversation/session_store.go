package conversation

import (
	"sync"
	"time"

	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// DefaultIdleTimeout is how long an untouched conversation is kept.
const DefaultIdleTimeout = 5 * time.Minute

// SessionStore keeps dialogue progress per identity. It is not the source of
// truth for bookings; losing an entry only loses unfinished answers.
type SessionStore interface {
	Get(identity string) (State, bool)
	Set(identity string, state State)
	Clear(identity string)
}

type sessionEntry struct {
	state State
	// generation changes on every Set so a stale timer can tell it was superseded.
	generation uint64
	timer      *time.Timer
}

// MemorySessionStore is an in-process SessionStore. Each entry owns a timer
// that evicts it after the idle timeout; Get also treats expired entries as absent.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	idle    time.Duration
	now     func() time.Time
	onEvict func(identity string)
	logger  *logging.Logger
	closed  bool
}

var _ SessionStore = (*MemorySessionStore)(nil)

// SessionOption customises a MemorySessionStore.
type SessionOption func(*MemorySessionStore)

// WithSessionClock injects the time source used for LastUpdated and expiry checks.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *MemorySessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEvictionHook is called (outside the store lock) for every idle eviction.
func WithEvictionHook(fn func(identity string)) SessionOption {
	return func(s *MemorySessionStore) {
		s.onEvict = fn
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(logger *logging.Logger) SessionOption {
	return func(s *MemorySessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewMemorySessionStore creates a store evicting entries idle for longer than idle.
func NewMemorySessionStore(idle time.Duration, opts ...SessionOption) *MemorySessionStore {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	s := &MemorySessionStore{
		entries: make(map[string]*sessionEntry),
		idle:    idle,
		now:     time.Now,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemorySessionStore) Get(identity string) (State, bool) {
	s.mu.Lock()
	entry, ok := s.entries[identity]
	if !ok {
		s.mu.Unlock()
		return State{}, false
	}
	if s.now().Sub(entry.state.LastUpdated) >= s.idle {
		s.removeLocked(identity, entry)
		s.mu.Unlock()
		s.evicted(identity, "access")
		return State{}, false
	}
	state := entry.state
	s.mu.Unlock()
	return state, true
}

func (s *MemorySessionStore) Set(identity string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	state.Identity = identity
	state.LastUpdated = s.now()

	entry, ok := s.entries[identity]
	if !ok {
		entry = &sessionEntry{}
		s.entries[identity] = entry
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.generation++
	entry.state = state

	generation := entry.generation
	entry.timer = time.AfterFunc(s.idle, func() { s.expire(identity, generation) })
}

func (s *MemorySessionStore) Clear(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[identity]; ok {
		s.removeLocked(identity, entry)
	}
}

// Len reports the number of live entries.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops every pending eviction timer and drops all entries.
func (s *MemorySessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for identity, entry := range s.entries {
		s.removeLocked(identity, entry)
	}
	s.closed = true
}

func (s *MemorySessionStore) expire(identity string, generation uint64) {
	s.mu.Lock()
	entry, ok := s.entries[identity]
	if !ok || entry.generation != generation {
		s.mu.Unlock()
		return
	}
	s.removeLocked(identity, entry)
	s.mu.Unlock()
	s.evicted(identity, "timer")
}

func (s *MemorySessionStore) removeLocked(identity string, entry *sessionEntry) {
	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(s.entries, identity)
}

func (s *MemorySessionStore) evicted(identity, trigger string) {
	s.logger.Debug("conversation evicted after idle timeout", "identity", identity, "trigger", trigger)
	if s.onEvict != nil {
		s.onEvict(identity)
	}
}

// DisengagedSet holds identities that declined to book.
type DisengagedSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewDisengagedSet creates an empty set.
func NewDisengagedSet() *DisengagedSet {
	return &DisengagedSet{ids: make(map[string]struct{})}
}

func (d *DisengagedSet) Add(identity string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[identity] = struct{}{}
}

func (d *DisengagedSet) Remove(identity string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ids, identity)
}

func (d *DisengagedSet) Contains(identity string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.ids[identity]
	return ok
}
