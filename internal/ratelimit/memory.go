package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is how many increments pass between inline sweeps of expired
// windows.
const sweepEvery = 1024

// MemoryStore keeps windows in process memory. Counts are exact for a single
// instance only; use PostgresStore when several instances share traffic.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*Window
	ops     int
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*Window)}
}

// Increment resets an expired window and counts the request under one lock.
func (m *MemoryStore) Increment(_ context.Context, identity string, now time.Time, window time.Duration) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ops++
	if m.ops%sweepEvery == 0 {
		m.sweepLocked(now)
	}

	w, ok := m.windows[identity]
	if !ok || !now.Before(w.ResetAt) {
		w = &Window{ResetAt: now.Add(window)}
		m.windows[identity] = w
	}
	w.Count++
	return *w, nil
}

// Sweep drops windows that expired at or before now and returns how many
// were removed.
func (m *MemoryStore) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(now)
}

func (m *MemoryStore) sweepLocked(now time.Time) int {
	n := 0
	for id, w := range m.windows {
		if !now.Before(w.ResetAt) {
			delete(m.windows, id)
			n++
		}
	}
	return n
}

// Len returns the number of tracked identities.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
