package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecutor_NoPatterns(t *testing.T) {
	e := NewExecutor()
	called := false
	if err := e.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	}); err != nil || !called {
		t.Errorf("Execute() = %v, called = %v", err, called)
	}
}

func TestExecutor_RecordsEveryAttemptOnBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 10})
	e := NewExecutor(
		WithCircuitBreaker(cb),
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})),
	)

	err := e.Execute(context.Background(), failing)
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Fatalf("Execute() = %v, want ErrMaxRetriesExceeded", err)
	}
	if got := cb.Metrics().Failures; got != 3 {
		t.Errorf("breaker failures = %d, want 3", got)
	}
}

func TestExecutor_StopsWhenBreakerOpens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})
	e := NewExecutor(
		WithCircuitBreaker(cb),
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond})),
	)

	calls := 0
	err := e.Execute(context.Background(), func(context.Context) error {
		calls++
		return errDownstream
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestExecutor_TimeoutPerAttempt(t *testing.T) {
	e := NewExecutor(
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond})),
		WithTimeout(5*time.Millisecond),
	)

	var attempts atomic.Int32
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		if attempts.Add(1) == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		t.Errorf("Execute() = %v, want success on second attempt", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestExecutor_BulkheadFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	e := NewExecutor(WithBulkhead(b))

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer b.Release()

	if err := e.Execute(context.Background(), succeeding); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Execute() = %v, want ErrBulkheadFull", err)
	}
}
