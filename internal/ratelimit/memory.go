package ratelimit

import (
	"context"
	"sync"
)

// MemoryStore is an in-process counter store for single-instance
// deployments and tests. Counters for expired windows are dropped on
// the next increment for the same key.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
}

type windowCounter struct {
	minuteWindow int64
	minuteCount  int64
	dayWindow    int64
	dayCount     int64
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*windowCounter)}
}

// Incr implements CounterStore
func (s *MemoryStore) Incr(_ context.Context, key string, minuteWindow, dayWindow int64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		c = &windowCounter{minuteWindow: minuteWindow, dayWindow: dayWindow}
		s.counters[key] = c
	}
	if c.minuteWindow != minuteWindow {
		c.minuteWindow = minuteWindow
		c.minuteCount = 0
	}
	if c.dayWindow != dayWindow {
		c.dayWindow = dayWindow
		c.dayCount = 0
	}
	c.minuteCount++
	c.dayCount++
	return c.minuteCount, c.dayCount, nil
}
