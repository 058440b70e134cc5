package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultEvictWatermark is the table size that triggers an opportunistic
// sweep of expired windows.
const DefaultEvictWatermark = 10_000

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore is an in-process fixed-window counter table. It is explicitly
// process-local: a horizontally scaled deployment gets a higher effective
// ceiling than the nominal one. Swap in RedisStore for shared counting.
type MemoryStore struct {
	mu             sync.Mutex
	windows        map[string]*window
	maxRequests    int
	windowDuration time.Duration
	evictWatermark int

	now func() time.Time // injectable for tests
}

// NewMemoryStore creates a store allowing maxRequests per windowDuration per key.
func NewMemoryStore(maxRequests int, windowDuration time.Duration) *MemoryStore {
	return &MemoryStore{
		windows:        make(map[string]*window),
		maxRequests:    maxRequests,
		windowDuration: windowDuration,
		evictWatermark: DefaultEvictWatermark,
		now:            time.Now,
	}
}

// Allow counts one request for key. The increment and the ceiling comparison
// happen under the store lock, so two concurrent calls can never both observe
// the last free slot.
func (s *MemoryStore) Allow(_ context.Context, key string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	w, ok := s.windows[key]
	if !ok {
		if len(s.windows) >= s.evictWatermark {
			s.evictExpired(now)
		}
		w = &window{resetAt: now.Add(s.windowDuration)}
		s.windows[key] = w
	} else if now.After(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(s.windowDuration)
	}

	w.count++
	if w.count > s.maxRequests {
		return Decision{Allowed: false, RetryAfter: w.resetAt.Sub(now)}, nil
	}

	return Decision{Allowed: true, Remaining: s.maxRequests - w.count}, nil
}

// evictExpired removes windows whose reset time has passed. Called with the
// lock held, only when the table crosses the watermark, so sustained traffic
// from many distinct callers cannot grow the table without bound.
func (s *MemoryStore) evictExpired(now time.Time) {
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

// Len reports the number of tracked windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
