package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Timeout bounds a single operation. On expiry the operation's context is
// cancelled, so an HTTP request bound to it is aborted rather than left
// running in the background.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout of d. Non-positive d defaults to 30s.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 30 * time.Second
	}
	return &Timeout{d: d}
}

// Duration returns the configured limit.
func (t *Timeout) Duration() time.Duration {
	return t.d
}

// Execute runs op under a derived deadline. If the deadline passes first,
// Execute returns ErrTimeout without waiting for op to observe the
// cancellation.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %w", ErrTimeout, t.d, err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, t.d)
		}
		return ctx.Err()
	}
}

// ExecuteWithTimeout runs op with a one-off timeout.
func ExecuteWithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	return NewTimeout(d).Execute(ctx, op)
}
