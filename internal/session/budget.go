package session

import "time"

// Catalog call budget defaults.
const (
	DefaultCallLimit  = 20
	DefaultCallWindow = time.Hour
)

// CallBudget is a rolling record of catalog calls made by one session.
type CallBudget struct {
	limit  int
	window time.Duration
	calls  []time.Time
}

// NewCallBudget restores a budget from unix-nanosecond timestamps.
func NewCallBudget(limit int, window time.Duration, stamps []int64) *CallBudget {
	if limit <= 0 {
		limit = DefaultCallLimit
	}
	if window <= 0 {
		window = DefaultCallWindow
	}
	b := &CallBudget{limit: limit, window: window, calls: make([]time.Time, 0, len(stamps))}
	for _, ns := range stamps {
		b.calls = append(b.calls, time.Unix(0, ns))
	}
	return b
}

// Prune drops calls older than the window.
func (b *CallBudget) Prune(now time.Time) {
	cutoff := now.Add(-b.window)
	kept := b.calls[:0]
	for _, at := range b.calls {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	b.calls = kept
}

// Remaining reports how many calls are left in the current window.
func (b *CallBudget) Remaining(now time.Time) int {
	b.Prune(now)
	return max(b.limit-len(b.calls), 0)
}

// Allow reports whether another call fits in the window.
func (b *CallBudget) Allow(now time.Time) bool {
	return b.Remaining(now) > 0
}

// Record notes a successful call.
func (b *CallBudget) Record(now time.Time) {
	b.calls = append(b.calls, now)
}

// Limit returns the per-window call limit.
func (b *CallBudget) Limit() int {
	return b.limit
}

func (b *CallBudget) stamps() []int64 {
	out := make([]int64, len(b.calls))
	for i, at := range b.calls {
		out[i] = at.UnixNano()
	}
	return out
}
