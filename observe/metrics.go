package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records gateway metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records a dispatched JSON-RPC call.
	RecordRequest(ctx context.Context, call Call, duration time.Duration, err error)

	// RecordAdmission records an admission decision. An empty limitType
	// means the request was admitted.
	RecordAdmission(ctx context.Context, limitType string)

	// RecordUpstream records one protected downstream call.
	RecordUpstream(ctx context.Context, model string, duration time.Duration, err error)

	// RecordCacheLookup records a response cache lookup.
	RecordCacheLookup(ctx context.Context, hit bool)

	// RecordBreakerTransition records a circuit breaker state change.
	RecordBreakerTransition(ctx context.Context, from, to string)

	// RecordAuditEvent records an audit event.
	RecordAuditEvent(ctx context.Context, eventType, severity string)
}

type metricsImpl struct {
	requests       metric.Int64Counter
	requestErrors  metric.Int64Counter
	requestLatency metric.Float64Histogram
	admissions     metric.Int64Counter
	upstreamCalls  metric.Int64Counter
	upstreamErrors metric.Int64Counter
	upstreamTime   metric.Float64Histogram
	cacheLookups   metric.Int64Counter
	breakerChanges metric.Int64Counter
	auditEvents    metric.Int64Counter
}

// NewMetrics registers the gateway instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.requests, "llmguard.requests.total", "Total number of JSON-RPC calls", "{call}"},
		{&m.requestErrors, "llmguard.requests.errors", "Total number of failed JSON-RPC calls", "{error}"},
		{&m.admissions, "llmguard.admission.decisions", "Admission decisions by limit type", "{decision}"},
		{&m.upstreamCalls, "llmguard.upstream.calls", "Total number of protected downstream calls", "{call}"},
		{&m.upstreamErrors, "llmguard.upstream.errors", "Total number of failed downstream calls", "{error}"},
		{&m.cacheLookups, "llmguard.cache.lookups", "Response cache lookups", "{lookup}"},
		{&m.breakerChanges, "llmguard.breaker.transitions", "Circuit breaker state changes", "{transition}"},
		{&m.auditEvents, "llmguard.audit.events", "Recorded security audit events", "{event}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	m.requestLatency, err = meter.Float64Histogram(
		"llmguard.requests.duration_ms",
		metric.WithDescription("JSON-RPC call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.upstreamTime, err = meter.Float64Histogram(
		"llmguard.upstream.duration_ms",
		metric.WithDescription("Downstream call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// NoopMetrics returns a Metrics that records nothing.
func NoopMetrics() Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

func (m *metricsImpl) RecordRequest(ctx context.Context, call Call, duration time.Duration, err error) {
	opt := metric.WithAttributes(call.attributes()...)

	m.requests.Add(ctx, 1, opt)
	if err != nil {
		m.requestErrors.Add(ctx, 1, opt)
	}
	m.requestLatency.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordAdmission(ctx context.Context, limitType string) {
	decision := "allowed"
	if limitType != "" {
		decision = "denied"
	}
	m.admissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", decision),
		attribute.String("limit_type", limitType),
	))
}

func (m *metricsImpl) RecordUpstream(ctx context.Context, model string, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("llm.model", model))

	m.upstreamCalls.Add(ctx, 1, opt)
	if err != nil {
		m.upstreamErrors.Add(ctx, 1, opt)
	}
	m.upstreamTime.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

func (m *metricsImpl) RecordBreakerTransition(ctx context.Context, from, to string) {
	m.breakerChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *metricsImpl) RecordAuditEvent(ctx context.Context, eventType, severity string) {
	m.auditEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("severity", severity),
	))
}
