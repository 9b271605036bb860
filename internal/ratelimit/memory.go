package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps per-identifier admission timestamps in process memory.
type MemoryLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string][]time.Time
	checks  int
}

// pruneEvery bounds how often idle identifiers are dropped from the map.
const pruneEvery = 1024

// NewMemoryLimiter admits at most max requests per identifier in any trailing window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     max,
		window:  window,
		now:     time.Now,
		entries: make(map[string][]time.Time),
	}
}

// Check prunes expired timestamps for id, then admits and records the attempt if the
// remaining count is below max.
func (l *MemoryLimiter) Check(_ context.Context, id string) (bool, error) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.checks++
	if l.checks%pruneEvery == 0 {
		l.dropIdle(cutoff)
	}

	kept := l.entries[id][:0]
	for _, ts := range l.entries[id] {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		l.entries[id] = kept
		return false, nil
	}
	l.entries[id] = append(kept, now)
	return true, nil
}

func (l *MemoryLimiter) dropIdle(cutoff time.Time) {
	for id, stamps := range l.entries {
		if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
			delete(l.entries, id)
		}
	}
}

// Reset forgets every identifier.
func (l *MemoryLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string][]time.Time)
}

// Len returns the number of identifiers currently tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
