package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errDownstream = errors.New("downstream failed")

func failing(context.Context) error    { return errDownstream }
func succeeding(context.Context) error { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.State() != StateClosed {
		t.Errorf("Initial state = %v, want closed", cb.State())
	}
	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.RecoveryTimeout != 60*time.Second {
		t.Errorf("RecoveryTimeout = %v, want 60s", cb.config.RecoveryTimeout)
	}
	if cb.config.HalfOpenMaxCalls != 3 {
		t.Errorf("HalfOpenMaxCalls = %d, want 3", cb.config.HalfOpenMaxCalls)
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	const threshold = 4
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: threshold})
	ctx := context.Background()

	for i := 1; i < threshold; i++ {
		if err := cb.Execute(ctx, failing); !errors.Is(err, errDownstream) {
			t.Fatalf("Execute() error = %v, want downstream error", err)
		}
		if cb.State() != StateClosed {
			t.Fatalf("after %d failures state = %v, want closed", i, cb.State())
		}
	}

	_ = cb.Execute(ctx, failing)
	if cb.State() != StateOpen {
		t.Fatalf("after %d failures state = %v, want open", threshold, cb.State())
	}

	err := cb.Execute(ctx, func(context.Context) error {
		t.Error("op must not run while open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() while open = %v, want ErrCircuitOpen", err)
	}
	if m := cb.Metrics(); m.Trips != 1 || m.Rejected != 1 {
		t.Errorf("Metrics() trips=%d rejected=%d, want 1 and 1", m.Trips, m.Rejected)
	}
}

func TestCircuitBreaker_RecoveryAndHalfOpenLimit(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 3,
		Now:              clock.Now,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	clock.Advance(30 * time.Second)
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() at exactly the recovery timeout = %v, want ErrCircuitOpen", err)
	}

	clock.Advance(time.Millisecond)
	for i := 0; i < 3; i++ {
		if err := cb.Allow(); err != nil {
			t.Fatalf("trial call %d denied: %v", i+1, err)
		}
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("fourth trial call = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_HalfOpenOutcomes(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		Now:              clock.Now,
	})

	cb.RecordFailure()
	clock.Advance(2 * time.Second)

	if err := cb.Execute(context.Background(), failing); !errors.Is(err, errDownstream) {
		t.Fatalf("trial Execute() = %v", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("failure in half-open: state = %v, want open", cb.State())
	}

	clock.Advance(2 * time.Second)
	if err := cb.Execute(context.Background(), succeeding); err != nil {
		t.Fatalf("trial Execute() = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("success in half-open: state = %v, want closed", cb.State())
	}
	if m := cb.Metrics(); m.Failures != 0 {
		t.Errorf("Failures = %d, want 0 after success", m.Failures)
	}
}

func TestCircuitBreaker_CallerCancellationNotCounted(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		HalfOpenMaxCalls: 1,
		Now:              clock.Now,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	abandoned := func(ctx context.Context) error { return ctx.Err() }

	if err := cb.Execute(ctx, abandoned); !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() = %v, want context.Canceled", err)
	}
	if cb.State() != StateClosed || cb.Metrics().Failures != 0 {
		t.Fatalf("state = %v, failures = %d, want closed with none", cb.State(), cb.Metrics().Failures)
	}

	cb.RecordFailure()
	clock.Advance(2 * time.Second)
	_ = cb.Execute(ctx, abandoned)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}
	if err := cb.Execute(context.Background(), succeeding); err != nil {
		t.Errorf("trial slot was not returned: Execute() = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_FailuresResetOnlyOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed (success reset the count)", cb.State())
	}
	if got := cb.Metrics().Failures; got != 2 {
		t.Errorf("Failures = %d, want 2", got)
	}
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Disabled: true, FailureThreshold: 1})

	for i := 0; i < 10; i++ {
		cb.RecordFailure()
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("Allow() on disabled breaker = %v, want nil", err)
	}
	m := cb.Metrics()
	if m.Enabled || m.Failures != 0 || m.State != StateClosed {
		t.Errorf("Metrics() = %+v, want disabled, no failures, closed", m)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		Now:              clock.Now,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	cb.RecordFailure()
	clock.Advance(2 * time.Second)
	_ = cb.Allow()
	cb.RecordSuccess()

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	cb.RecordFailure()
	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("State after Reset = %v, want closed", cb.State())
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("Allow() after Reset = %v", err)
	}
}

func TestCircuitBreaker_ConcurrentHalfOpenAdmission(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		HalfOpenMaxCalls: 3,
		Now:              clock.Now,
	})
	cb.RecordFailure()
	clock.Advance(2 * time.Second)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cb.Allow() == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 3 {
		t.Errorf("admitted = %d, want exactly 3", got)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
