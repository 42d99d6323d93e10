package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Call describes one JSON-RPC call for telemetry purposes.
type Call struct {
	Method    string // JSON-RPC method (required)
	Tool      string // params.name for tools/call
	Category  string // rate-limit category of Tool
	RequestID string // gateway-assigned request id
}

// SpanName returns the deterministic span name for this call.
// Format: rpc.<method> or rpc.<method>.<tool>
func (c Call) SpanName() string {
	if c.Tool != "" {
		return "rpc." + c.Method + "." + c.Tool
	}
	return "rpc." + c.Method
}

func (c Call) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.method", c.Method),
	}
	if c.Tool != "" {
		attrs = append(attrs, attribute.String("llmguard.tool", c.Tool))
	}
	if c.Category != "" {
		attrs = append(attrs, attribute.String("llmguard.tool.category", c.Category))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with call-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for a gateway call.
	StartSpan(ctx context.Context, call Call) (context.Context, trace.Span)

	// StartUpstreamSpan starts a client span for a downstream API call.
	StartUpstreamSpan(ctx context.Context, model string) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// NoopTracer returns a tracer that records nothing.
func NoopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *tracerImpl) StartSpan(ctx context.Context, call Call) (context.Context, trace.Span) {
	attrs := append(call.attributes(), attribute.Bool("llmguard.error", false))
	if call.RequestID != "" {
		attrs = append(attrs, attribute.String("llmguard.request_id", call.RequestID))
	}
	return t.tracer.Start(ctx, call.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

func (t *tracerImpl) StartUpstreamSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "upstream.chat_completion",
		trace.WithAttributes(attribute.String("llm.model", model)),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("llmguard.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
