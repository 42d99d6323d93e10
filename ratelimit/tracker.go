package ratelimit

import (
	"sync"
	"time"
)

// tracker accumulates one client's suspicious-activity counters.
type tracker struct {
	mu           sync.Mutex
	rapid        int
	failedAuth   int
	oversize     int
	patterns     int
	firstSeen    time.Time
	blockedUntil time.Time
	risk         int
	evicted      bool
}

// scoreLocked recomputes the risk score: the weighted counter sum minus one
// point per whole minute since the client was first seen, floored at zero.
// A manual block pins the score to MaxRisk until it expires.
func (t *tracker) scoreLocked(now time.Time, w RiskWeights) int {
	if now.Before(t.blockedUntil) {
		t.risk = MaxRisk
		return t.risk
	}

	score := t.rapid*w.Rapid +
		t.failedAuth*w.FailedAuth +
		t.oversize*w.Oversize +
		t.patterns*w.PatternViolation

	decay := int(now.Sub(t.firstSeen) / time.Minute)
	t.risk = max(score-decay, 0)
	return t.risk
}

func (t *tracker) blockedLocked(now time.Time) bool {
	return now.Before(t.blockedUntil)
}
