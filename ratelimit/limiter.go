package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/llmguard/observe"
	"github.com/jonwraymond/llmguard/resilience"
)

// Limiter is the gateway's admission controller. It is safe for
// concurrent use; unrelated clients never contend on the same lock.
type Limiter struct {
	config Config
	logger observe.Logger

	global *rate.Limiter
	tools  map[string]*resilience.Bucket

	windows  sync.Map // client key -> *window
	trackers sync.Map // client key -> *tracker

	checked atomic.Int64
	denials sync.Map // limit type -> *atomic.Int64

	janitorMu sync.Mutex
	stop      context.CancelFunc
	done      chan struct{}
}

// New creates a Limiter. Zero-valued limits take their defaults.
func New(config Config, logger observe.Logger) *Limiter {
	config = config.withDefaults()
	if logger == nil {
		logger = observe.NopLogger()
	}

	burst := config.GlobalRequestsPerSecond + config.BurstAllowance
	l := &Limiter{
		config: config,
		logger: logger.With(observe.Field{Key: "component", Value: "ratelimit"}),
		global: rate.NewLimiter(rate.Limit(config.GlobalRequestsPerSecond), burst),
		tools: map[string]*resilience.Bucket{
			CategoryDeepSeekQuery: toolBucket(config.Tools.DeepSeekQueryPerMinute, config.Now),
			CategoryFileAnalysis:  toolBucket(config.Tools.FileAnalysisPerMinute, config.Now),
		},
	}

	l.logger.Info(context.Background(), "rate limiter initialized",
		observe.Field{Key: "enabled", Value: config.Enabled},
		observe.Field{Key: "global_rps", Value: config.GlobalRequestsPerSecond},
		observe.Field{Key: "per_client_rpm", Value: config.PerClientRequestsPerMinute},
	)
	return l
}

func toolBucket(perMinute int, now func() time.Time) *resilience.Bucket {
	return resilience.NewBucket(resilience.BucketConfig{
		Capacity:       perMinute,
		RefillAmount:   perMinute,
		RefillInterval: time.Minute,
		Now:            now,
	})
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// CheckAdmission decides whether req may proceed.
func (l *Limiter) CheckAdmission(ctx context.Context, req Request) Decision {
	if !l.config.Enabled {
		return allowed()
	}

	now := req.Timestamp
	if now.IsZero() {
		now = l.config.Now()
	}
	l.checked.Add(1)

	if !l.global.AllowN(now, 1) {
		l.logger.Warn(ctx, "global rate limit exceeded", observe.Field{Key: "client", Value: req.ClientKey})
		return l.deny(denied(LimitGlobal, time.Second,
			l.config.GlobalRequestsPerSecond+1, l.config.GlobalRequestsPerSecond))
	}

	w := l.lockWindow(req.ClientKey, now)
	defer w.mu.Unlock()

	if d := l.checkPerClient(ctx, w, req.ClientKey, now); !d.Allowed {
		return l.deny(d)
	}
	charged, d := l.checkTool(ctx, req, now)
	if !d.Allowed {
		return l.deny(d)
	}
	if d := l.checkAnomaly(ctx, w, req, now); !d.Allowed {
		if charged != nil {
			charged.Return(1)
		}
		return l.deny(d)
	}

	w.admitLocked(now)
	l.logger.Debug(ctx, "rate limit check passed", observe.Field{Key: "client", Value: req.ClientKey})
	return allowed()
}

func (l *Limiter) checkPerClient(ctx context.Context, w *window, key string, now time.Time) Decision {
	w.pruneLocked(now.Add(-l.config.Window))

	count := len(w.stamps)
	if count < l.config.PerClientRequestsPerMinute {
		return allowed()
	}

	w.blocked++
	w.lastSeen = now
	l.logger.Warn(ctx, "per-client rate limit exceeded",
		observe.Field{Key: "client", Value: key},
		observe.Field{Key: "count", Value: count},
		observe.Field{Key: "limit", Value: l.config.PerClientRequestsPerMinute},
	)
	return denied(LimitPerClient, l.config.Window, count, l.config.PerClientRequestsPerMinute)
}

// checkTool takes a token from the tool's category bucket. On success it
// returns the charged bucket, nil when the tool has no category limit.
func (l *Limiter) checkTool(ctx context.Context, req Request, now time.Time) (*resilience.Bucket, Decision) {
	if req.ToolName == "" {
		return nil, allowed()
	}

	category := Category(req.ToolName)
	bucket, ok := l.tools[category]
	if !ok {
		return nil, allowed()
	}
	if bucket.TryAcquireAt(now, 1) {
		return bucket, allowed()
	}

	limit := bucket.Capacity()
	l.logger.Warn(ctx, "tool rate limit exceeded",
		observe.Field{Key: "client", Value: req.ClientKey},
		observe.Field{Key: "category", Value: category},
	)
	return nil, denied(limitToolPrefix+category, time.Minute, limit+1, limit)
}

func (l *Limiter) checkAnomaly(ctx context.Context, w *window, req Request, now time.Time) Decision {
	t := l.lockTracker(req.ClientKey, now)
	defer t.mu.Unlock()

	a := l.config.Anomaly
	if w.countAfterLocked(now.Add(-time.Second)) > a.RapidRequestsPerSecond {
		t.rapid++
	}
	if req.PayloadSize > a.LargeRequestBytes {
		t.oversize++
	}

	risk := t.scoreLocked(now, a.Weights)
	switch {
	case risk > a.BlockThreshold:
		l.logger.Error(ctx, "high-risk client blocked",
			observe.Field{Key: "client", Value: req.ClientKey},
			observe.Field{Key: "risk_score", Value: risk},
		)
		return denied(LimitSuspicious, 5*time.Minute, risk, a.BlockThreshold)
	case risk > a.WarnThreshold:
		l.logger.Warn(ctx, "suspicious activity detected",
			observe.Field{Key: "client", Value: req.ClientKey},
			observe.Field{Key: "risk_score", Value: risk},
		)
	}
	return allowed()
}

func (l *Limiter) deny(d Decision) Decision {
	v, _ := l.denials.LoadOrStore(d.LimitType, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
	return d
}

// lockWindow returns the client's window, locked. An entry evicted by the
// janitor between load and lock is replaced.
func (l *Limiter) lockWindow(key string, now time.Time) *window {
	for {
		v, _ := l.windows.LoadOrStore(key, &window{lastSeen: now})
		w := v.(*window)
		w.mu.Lock()
		if !w.evicted {
			return w
		}
		w.mu.Unlock()
	}
}

func (l *Limiter) lockTracker(key string, now time.Time) *tracker {
	for {
		v, _ := l.trackers.LoadOrStore(key, &tracker{firstSeen: now})
		t := v.(*tracker)
		t.mu.Lock()
		if !t.evicted {
			return t
		}
		t.mu.Unlock()
	}
}

// RecordFailedAuth counts a failed credential check against the client.
func (l *Limiter) RecordFailedAuth(key string) {
	t := l.lockTracker(key, l.config.Now())
	t.failedAuth++
	t.mu.Unlock()
}

// RecordPatternViolation counts a rejected or suspicious payload against
// the client.
func (l *Limiter) RecordPatternViolation(key string) {
	t := l.lockTracker(key, l.config.Now())
	t.patterns++
	t.mu.Unlock()
}

// BlockClient pins the client's risk score to MaxRisk for d.
func (l *Limiter) BlockClient(ctx context.Context, key string, d time.Duration) {
	now := l.config.Now()
	t := l.lockTracker(key, now)
	t.blockedUntil = now.Add(d)
	t.risk = MaxRisk
	t.mu.Unlock()

	l.logger.Warn(ctx, "client manually blocked",
		observe.Field{Key: "client", Value: key},
		observe.Field{Key: "duration", Value: d.String()},
	)
}

// RiskScore returns the client's current risk score.
func (l *Limiter) RiskScore(key string) int {
	v, ok := l.trackers.Load(key)
	if !ok {
		return 0
	}
	t := v.(*tracker)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scoreLocked(l.config.Now(), l.config.Anomaly.Weights)
}

// CleanupOldEntries evicts windows idle longer than IdleTTL and trackers
// first seen longer than IdleTTL ago, unless still manually blocked. It
// returns the number of entries removed.
func (l *Limiter) CleanupOldEntries(ctx context.Context) int {
	now := l.config.Now()
	cutoff := now.Add(-l.config.IdleTTL)
	removed := 0

	l.windows.Range(func(k, v any) bool {
		w := v.(*window)
		w.mu.Lock()
		if w.lastSeen.Before(cutoff) {
			w.evicted = true
			l.windows.Delete(k)
			removed++
		} else {
			w.pruneLocked(now.Add(-l.config.Window))
		}
		w.mu.Unlock()
		return true
	})

	l.trackers.Range(func(k, v any) bool {
		t := v.(*tracker)
		t.mu.Lock()
		if t.firstSeen.Before(cutoff) && !t.blockedLocked(now) {
			t.evicted = true
			l.trackers.Delete(k)
			removed++
		}
		t.mu.Unlock()
		return true
	})

	l.logger.Debug(ctx, "cleaned up rate limit entries",
		observe.Field{Key: "removed", Value: removed},
	)
	return removed
}

// Start runs CleanupOldEntries every interval until ctx ends or Stop is
// called. Calling Start on a running Limiter is a no-op.
func (l *Limiter) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	l.janitorMu.Lock()
	defer l.janitorMu.Unlock()
	if l.stop != nil {
		return
	}

	ctx, l.stop = context.WithCancel(ctx)
	l.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.CleanupOldEntries(ctx)
			}
		}
	}(l.done)
}

// Stop halts the janitor and waits for it to exit.
func (l *Limiter) Stop() {
	l.janitorMu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	l.janitorMu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}
