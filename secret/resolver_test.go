package secret

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name   string
	values map[string]string
	err    error
	closed bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, ref string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.values[ref], nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		ref      string
		ok       bool
	}{
		{in: "secretref:vault:secret/llm#api_key", provider: "vault", ref: "secret/llm#api_key", ok: true},
		{in: "secretref:env:DEEPSEEK_API_KEY", provider: "env", ref: "DEEPSEEK_API_KEY", ok: true},
		{in: "secretref:env:", ok: false},
		{in: "secretref::x", ok: false},
		{in: "plain", ok: false},
	}
	for _, tt := range tests {
		provider, ref, ok := ParseSecretRef(tt.in)
		if ok != tt.ok || provider != tt.provider || ref != tt.ref {
			t.Errorf("ParseSecretRef(%q) = %q, %q, %v; want %q, %q, %v",
				tt.in, provider, ref, ok, tt.provider, tt.ref, tt.ok)
		}
	}
}

func TestResolver_ResolveValue(t *testing.T) {
	t.Setenv("LLMGUARD_TEST_MODEL", "deepseek-chat")
	stub := &stubProvider{name: "stub", values: map[string]string{"alpha": "one", "beta": "two"}}
	r := NewResolver(true, stub)
	ctx := context.Background()

	tests := []struct {
		in   string
		want string
	}{
		{in: "secretref:stub:alpha", want: "one"},
		{in: "Bearer secretref:stub:beta", want: "Bearer two"},
		{in: "secretref:stub:alpha and secretref:stub:beta", want: "one and two"},
		{in: "${LLMGUARD_TEST_MODEL}", want: "deepseek-chat"},
		{in: "plain", want: "plain"},
		{in: "cost $$5", want: "cost $5"},
	}
	for _, tt := range tests {
		got, err := r.ResolveValue(ctx, tt.in)
		if err != nil {
			t.Errorf("ResolveValue(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolver_Errors(t *testing.T) {
	errBackend := errors.New("backend down")
	r := NewResolver(true,
		&stubProvider{name: "stub", values: map[string]string{}},
		&stubProvider{name: "broken", err: errBackend},
	)
	ctx := context.Background()

	tests := []struct {
		in   string
		want error
	}{
		{in: "secretref:missing:x", want: ErrProviderNotRegistered},
		{in: "secretref:stub:empty", want: ErrEmptySecret},
		{in: "secretref:broken:x", want: errBackend},
		{in: "${LLMGUARD_TEST_UNSET_VAR}", want: ErrMissingEnv},
	}
	for _, tt := range tests {
		if _, err := r.ResolveValue(ctx, tt.in); !errors.Is(err, tt.want) {
			t.Errorf("ResolveValue(%q) error = %v, want %v", tt.in, err, tt.want)
		}
	}

	lenient := NewResolver(false, &stubProvider{name: "stub"})
	if got, err := lenient.ResolveValue(ctx, "secretref:stub:empty"); err != nil || got != "" {
		t.Errorf("lenient ResolveValue() = %q, %v", got, err)
	}
}

func TestResolver_Close(t *testing.T) {
	a, b := &stubProvider{name: "a"}, &stubProvider{name: "b"}
	r := NewResolver(true, a, nil)
	r.Register(b)

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("Close() did not close every provider")
	}
}
