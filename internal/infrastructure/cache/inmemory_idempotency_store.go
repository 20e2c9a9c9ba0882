package cache

import (
	"context"
	"sync"
	"time"

	"github.com/retailcore/backend/internal/domain/shared"
)

// sweepEvery is how often expired keys are purged from memory. Lookups treat
// expired keys as absent regardless, the sweep only bounds memory growth.
const sweepEvery = 5 * time.Minute

// InMemoryIdempotencyStore keeps processed keys in a process-local map. It
// backs single-instance deployments and tests; replay state is lost on
// restart, which the durable sync queue compensates for by replaying with
// the same idempotency keys.
type InMemoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]time.Time // key -> expiry

	done    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewInMemoryIdempotencyStore creates the store and starts its sweeper
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		seen: make(map[string]time.Time),
		done: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweeper()
	return s
}

// MarkProcessed claims a key for the given TTL. The first caller wins; any
// later call inside the TTL window reports the key as already processed.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.seen[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether the key holds an unexpired claim
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.seen[key]
	return ok && time.Now().Before(expiry), nil
}

// Size returns the number of keys held, expired ones included
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.stopped.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweeper() {
	defer s.wg.Done()

	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, expiry := range s.seen {
		if !now.Before(expiry) {
			delete(s.seen, key)
		}
	}
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
