package observe

import (
	"context"
	"time"
)

// HandlerFunc handles one JSON-RPC call.
type HandlerFunc func(ctx context.Context, call Call, params map[string]any) (any, error)

// Middleware wraps method handlers with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe HandlerFunc.
//   - Context: the span context is propagated to the handler.
//   - Errors: handler errors are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NoopTracer()
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Wrap wraps fn with a span, request metrics, and a completion log entry.
func (m *Middleware) Wrap(fn HandlerFunc) HandlerFunc {
	return func(ctx context.Context, call Call, params map[string]any) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, call)
		start := time.Now()

		result, err := fn(ctx, call, params)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordRequest(ctx, call, duration, err)

		fields := []Field{
			{Key: "method", Value: call.Method},
			{Key: "request_id", Value: call.RequestID},
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		if call.Tool != "" {
			fields = append(fields, Field{Key: "tool", Value: call.Tool})
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			m.logger.Error(ctx, "request failed", fields...)
		} else {
			m.logger.Debug(ctx, "request completed", fields...)
		}

		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
