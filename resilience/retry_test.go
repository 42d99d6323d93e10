package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_Defaults(t *testing.T) {
	r := NewRetry(RetryConfig{})
	cfg := r.Config()

	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", cfg.MaxDelay)
	}
}

func TestRetry_DelaySchedule(t *testing.T) {
	r := NewRetry(RetryConfig{})

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := r.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestRetry_JitterBounds(t *testing.T) {
	r := NewRetry(RetryConfig{Jitter: true})

	for attempt := 1; attempt <= 3; attempt++ {
		base := time.Second << (attempt - 1)
		for i := 0; i < 200; i++ {
			d := r.Delay(attempt)
			if d < base || d >= base+base/4 {
				t.Fatalf("Delay(%d) = %v, want in [%v, %v)", attempt, d, base, base+base/4)
			}
		}
	}
}

func TestRetry_MaxDelayCap(t *testing.T) {
	r := NewRetry(RetryConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second})
	if got := r.Delay(5); got != 3*time.Second {
		t.Errorf("Delay(5) = %v, want 3s", got)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var retried []int
	r := NewRetry(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			retried = append(retried, attempt)
		},
	})

	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errDownstream
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", retried)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond})

	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		return errDownstream
	})
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("Execute() error = %v, want ErrMaxRetriesExceeded", err)
	}
	if !errors.Is(err, errDownstream) {
		t.Errorf("Execute() error = %v, want it to wrap the last error", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetry_DoesNotRetryOpenCircuit(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond})

	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		return ErrCircuitOpen
	})
	if !errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("Execute() error = %v, want bare ErrCircuitOpen", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	err := r.Execute(ctx, func(context.Context) error {
		cancel()
		return errDownstream
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

type hintError time.Duration

func (e hintError) Error() string             { return "slow down" }
func (e hintError) RetryAfter() time.Duration { return time.Duration(e) }

func TestRetry_HonoursRetryAfter(t *testing.T) {
	var delays []time.Duration
	r := NewRetry(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    20 * time.Millisecond,
		OnRetry: func(_ int, _ error, delay time.Duration) {
			delays = append(delays, delay)
		},
	})

	hints := []error{hintError(5 * time.Millisecond), hintError(time.Hour)}
	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		if calls < len(hints) {
			calls++
			return hints[calls-1]
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := []time.Duration{5 * time.Millisecond, 20 * time.Millisecond}
	if len(delays) != 2 || delays[0] != want[0] || delays[1] != want[1] {
		t.Errorf("delays = %v, want %v", delays, want)
	}
}
