package ratelimit

import (
	"sync"
	"time"
)

// window is one client's sliding window of admitted request timestamps.
// Timestamps are appended in order, so pruning drops a prefix.
type window struct {
	mu       sync.Mutex
	stamps   []time.Time
	total    int64
	blocked  int64
	lastSeen time.Time
	evicted  bool
}

// pruneLocked drops timestamps at or before cutoff.
func (w *window) pruneLocked(cutoff time.Time) {
	n := 0
	for n < len(w.stamps) && !w.stamps[n].After(cutoff) {
		n++
	}
	if n > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[n:]...)
	}
}

// countAfterLocked counts timestamps strictly after t.
func (w *window) countAfterLocked(t time.Time) int {
	count := 0
	for i := len(w.stamps) - 1; i >= 0 && w.stamps[i].After(t); i-- {
		count++
	}
	return count
}

func (w *window) admitLocked(now time.Time) {
	w.stamps = append(w.stamps, now)
	w.total++
	w.lastSeen = now
}
