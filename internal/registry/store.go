package registry

import (
	"context"
	"sync"
	"time"
)

// Store arbitrates room-code uniqueness. The default is process-local; the
// Redis implementation lets several replicas share one code space. Game
// state itself never leaves the process.
type Store interface {
	// Reserve claims a code for ttl. It returns false when the code is
	// already held.
	Reserve(ctx context.Context, code string, ttl time.Duration) (bool, error)
	// Refresh extends the reservation of a live room.
	Refresh(ctx context.Context, code string, ttl time.Duration) error
	// Release frees a code. Releasing an unknown code is not an error.
	Release(ctx context.Context, code string) error
	Close() error
}

type memStore struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

// NewMemoryStore returns the in-process reservation store.
func NewMemoryStore() Store {
	return &memStore{expiry: make(map[string]time.Time)}
}

func (s *memStore) Reserve(_ context.Context, code string, ttl time.Duration) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.expiry[code]; ok && exp.After(now) {
		return false, nil
	}
	s.expiry[code] = now.Add(ttl)
	return true, nil
}

func (s *memStore) Refresh(_ context.Context, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expiry[code]; ok {
		s.expiry[code] = time.Now().Add(ttl)
	}
	return nil
}

func (s *memStore) Release(_ context.Context, code string) error {
	s.mu.Lock()
	delete(s.expiry, code)
	s.mu.Unlock()
	return nil
}

func (s *memStore) Close() error { return nil }
