package audit

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/llmguard/observe"
	"github.com/jonwraymond/llmguard/sanitize"
)

// Config configures an Auditor.
type Config struct {
	// Enabled turns recording on. A disabled Auditor stores nothing.
	Enabled bool

	// Capacity is the ring size.
	// Default: 1000
	Capacity int

	// MaxClients bounds the number of tracked client patterns. When full,
	// the least recently active client is forgotten.
	// Default: 10000
	MaxClients int
}

// Redactor rewrites free text before it is stored.
type Redactor func(string) string

// Option configures an Auditor.
type Option func(*Auditor)

// WithRedactor replaces sanitize.Redact as the detail redactor.
func WithRedactor(r Redactor) Option {
	return func(a *Auditor) {
		if r != nil {
			a.redact = r
		}
	}
}

// WithMetrics records every stored event on m.
func WithMetrics(m observe.Metrics) Option {
	return func(a *Auditor) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithClock overrides the clock used to stamp events, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Auditor) {
		if now != nil {
			a.now = now
		}
	}
}

// Auditor records security events. It is safe for concurrent use.
type Auditor struct {
	config  Config
	logger  observe.Logger
	redact  Redactor
	metrics observe.Metrics
	now     func() time.Time

	// mu guards everything below. Pattern analysis, log emission and
	// storage of one event happen under a single hold.
	mu       sync.Mutex
	ring     []Event
	next     int
	full     bool
	patterns map[string]*pattern
}

// New creates an Auditor.
func New(config Config, logger observe.Logger, opts ...Option) *Auditor {
	if config.Capacity <= 0 {
		config.Capacity = 1000
	}
	if config.MaxClients <= 0 {
		config.MaxClients = 10000
	}
	if logger == nil {
		logger = observe.NopLogger()
	}

	a := &Auditor{
		config:   config,
		logger:   logger.With(observe.Field{Key: "component", Value: "audit"}),
		redact:   sanitize.Redact,
		metrics:  observe.NoopMetrics(),
		now:      time.Now,
		ring:     make([]Event, 0, config.Capacity),
		patterns: make(map[string]*pattern),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enabled reports whether events are recorded.
func (a *Auditor) Enabled() bool {
	return a.config.Enabled
}

// Record sanitizes e, applies the client's risk adjustment, logs it and
// stores it. It returns the stored event. When the Auditor is disabled e
// is returned unchanged and nothing is stored.
func (a *Auditor) Record(ctx context.Context, e Event) Event {
	if !a.config.Enabled {
		return e
	}

	e = a.prepare(e)

	a.mu.Lock()
	if e.ClientID != "" {
		e.RiskScore += a.patternFor(e.ClientID).observe(e)
	}
	a.log(ctx, e)
	a.store(e)
	a.mu.Unlock()

	a.metrics.RecordAuditEvent(ctx, string(e.Type), string(e.Severity))

	e.Details = maps.Clone(e.Details)
	return e
}

// prepare fills defaults and redacts free text. The caller's Details map
// is never modified.
func (a *Auditor) prepare(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = a.now().UTC()
	}
	if e.Result == "" {
		e.Result = ResultPending
	}
	if e.UserAgent != "" {
		e.UserAgent = a.redact(sanitizeUserAgent(e.UserAgent))
	}
	if len(e.Details) > 0 {
		details := make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			details[k] = a.redact(v)
		}
		e.Details = details
	}
	return e
}

func (a *Auditor) patternFor(clientID string) *pattern {
	if p, ok := a.patterns[clientID]; ok {
		return p
	}
	if len(a.patterns) >= a.config.MaxClients {
		a.evictStalestLocked()
	}
	p := &pattern{}
	a.patterns[clientID] = p
	return p
}

func (a *Auditor) evictStalestLocked() {
	var (
		stalest string
		at      time.Time
		found   bool
	)
	for id, p := range a.patterns {
		if !found || p.lastActivity.Before(at) {
			stalest, at, found = id, p.lastActivity, true
		}
	}
	if found {
		delete(a.patterns, stalest)
	}
}

func (a *Auditor) store(e Event) {
	if len(a.ring) < a.config.Capacity {
		a.ring = append(a.ring, e)
		return
	}
	a.ring[a.next] = e
	a.next = (a.next + 1) % a.config.Capacity
	a.full = true
}

func (a *Auditor) log(ctx context.Context, e Event) {
	fields := []observe.Field{
		{Key: "event_id", Value: e.ID},
		{Key: "event_type", Value: string(e.Type)},
		{Key: "severity", Value: string(e.Severity)},
		{Key: "action", Value: e.Action},
		{Key: "result", Value: e.Result},
		{Key: "risk_score", Value: e.RiskScore},
	}
	if e.ClientID != "" {
		fields = append(fields, observe.Field{Key: "client_id", Value: e.ClientID})
	}
	if e.SourceIP != "" {
		fields = append(fields, observe.Field{Key: "source_ip", Value: e.SourceIP})
	}
	if e.Method != "" {
		fields = append(fields, observe.Field{Key: "method", Value: e.Method})
	}
	if e.Resource != "" {
		fields = append(fields, observe.Field{Key: "resource", Value: e.Resource})
	}
	if len(e.Details) > 0 {
		fields = append(fields, observe.Field{Key: "details", Value: e.Details})
	}

	const msg = "audit event"
	switch e.Severity {
	case SeverityCritical, SeverityHigh:
		a.logger.Error(ctx, msg, fields...)
	case SeverityMedium:
		a.logger.Warn(ctx, msg, fields...)
	case SeverityLow:
		a.logger.Info(ctx, msg, fields...)
	default:
		a.logger.Debug(ctx, msg, fields...)
	}
}

// Recent returns up to limit events, newest first. A non-positive limit
// means 100.
func (a *Auditor) Recent(limit int) []Event {
	if limit <= 0 {
		limit = 100
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := min(limit, len(a.ring))
	out := make([]Event, 0, n)
	// The newest event sits just before next once the ring has wrapped.
	newest := len(a.ring) - 1
	if a.full {
		newest = (a.next - 1 + len(a.ring)) % len(a.ring)
	}
	for i := range n {
		e := a.ring[(newest-i+len(a.ring))%len(a.ring)]
		e.Details = maps.Clone(e.Details)
		out = append(out, e)
	}
	return out
}

// RecentPublic is Recent in external form.
func (a *Auditor) RecentPublic(limit int) []PublicEvent {
	events := a.Recent(limit)
	out := make([]PublicEvent, len(events))
	for i, e := range events {
		out[i] = e.Public()
	}
	return out
}

// Len returns the number of stored events.
func (a *Auditor) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ring)
}
