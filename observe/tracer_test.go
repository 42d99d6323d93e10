package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCall_SpanName(t *testing.T) {
	tests := []struct {
		call Call
		want string
	}{
		{Call{Method: "health"}, "rpc.health"},
		{Call{Method: "tools/call", Tool: "analyze_files"}, "rpc.tools/call.analyze_files"},
	}
	for _, tt := range tests {
		if got := tt.call.SpanName(); got != tt.want {
			t.Errorf("SpanName() = %q, want %q", got, tt.want)
		}
	}
}

func TestTracer_SpanAttributesAndError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := NewTracer(tp.Tracer("test"))

	_, span := tr.StartSpan(context.Background(), Call{
		Method:    "tools/call",
		Tool:      "query_deepseek",
		Category:  "deepseek_query",
		RequestID: "req-1",
	})
	tr.EndSpan(span, errors.New("upstream down"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]

	attrs := make(map[attribute.Key]attribute.Value)
	for _, a := range s.Attributes() {
		attrs[a.Key] = a.Value
	}
	if attrs["rpc.method"].AsString() != "tools/call" {
		t.Errorf("rpc.method = %v", attrs["rpc.method"])
	}
	if attrs["llmguard.tool.category"].AsString() != "deepseek_query" {
		t.Errorf("llmguard.tool.category = %v", attrs["llmguard.tool.category"])
	}
	if !attrs["llmguard.error"].AsBool() {
		t.Error("llmguard.error = false, want true")
	}
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
}

func TestTracer_UpstreamSpanIsChild(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := NewTracer(tp.Tracer("test"))

	ctx, parent := tr.StartSpan(context.Background(), Call{Method: "tools/call"})
	_, child := tr.StartUpstreamSpan(ctx, "deepseek-chat")
	tr.EndSpan(child, nil)
	tr.EndSpan(parent, nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Error("upstream span is not a child of the call span")
	}
}
