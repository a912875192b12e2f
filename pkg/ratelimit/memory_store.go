package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	count    int64
	expireAt time.Time
}

// MemoryStore keeps windows in process memory. Intended for tests and
// single-instance deployments; production uses the Redis store.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*memoryWindow)}
}

func (s *MemoryStore) IncrementAndGet(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.After(w.expireAt) {
		w = &memoryWindow{expireAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++

	return w.count, time.Until(w.expireAt), nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}
