package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryStore is an in-process KeyedStore with optional expiry. Values are
// stored as given; callers replace them wholesale instead of mutating.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry[T]
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store. A zero ttl keeps entries forever.
func NewMemoryStore[T any](ttl time.Duration) *MemoryStore[T] {
	return &MemoryStore[T]{
		entries: make(map[string]memoryEntry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore[T]) Get(_ context.Context, key string) (T, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false, nil
	}
	if s.expired(entry) {
		s.mu.Lock()
		if current, still := s.entries[key]; still && s.expired(current) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return zero, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore[T]) Set(_ context.Context, key string, value T) error {
	entry := memoryEntry[T]{value: value}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (s *MemoryStore[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included until swept.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RunSweeper sweeps expired entries every interval until ctx is done.
func (s *MemoryStore[T]) RunSweeper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *MemoryStore[T]) expired(entry memoryEntry[T]) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}
