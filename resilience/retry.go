package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig configures Retry. Delays double from BaseDelay on every
// attempt, capped at MaxDelay.
type RetryConfig struct {
	// MaxAttempts counts the first call. Default: 3.
	MaxAttempts int

	// BaseDelay is the wait before the first retry. Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps the wait, hints included. Default: 30s.
	MaxDelay time.Duration

	// Jitter adds up to a quarter of the delay at random.
	Jitter bool

	// RetryIf reports whether err is worth another attempt. Default:
	// everything except ErrCircuitOpen and context.Canceled.
	RetryIf func(err error) bool

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// RetryAfterer is implemented by errors that carry a server-provided wait,
// such as an HTTP 429 with Retry-After.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

// Retry re-runs failed operations with exponential backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a Retry, filling defaults for zero fields.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool {
			return !errors.Is(err, ErrCircuitOpen) && !errors.Is(err, context.Canceled)
		}
	}
	return &Retry{config: config}
}

// Execute runs op until it succeeds, fails with an error RetryIf rejects,
// or runs out of attempts. Exhaustion returns ErrMaxRetriesExceeded
// wrapping the last error; a cancelled wait returns ctx.Err().
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !r.config.RetryIf(err) {
			return err
		}
		if attempt == r.config.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempt, err)
		}

		delay := r.waitFor(attempt, err)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if werr := sleep(ctx, delay); werr != nil {
			return werr
		}
	}
}

// waitFor honours a Retry-After hint when it exceeds the backoff delay.
func (r *Retry) waitFor(attempt int, err error) time.Duration {
	delay := r.Delay(attempt)
	var hint RetryAfterer
	if errors.As(err, &hint) && hint.RetryAfter() > delay {
		delay = min(hint.RetryAfter(), r.config.MaxDelay)
	}
	return delay
}

// Delay returns the backoff before the retry that follows attempt n
// (1-based).
func (r *Retry) Delay(attempt int) time.Duration {
	delay := r.config.BaseDelay
	for i := 1; i < attempt && delay < r.config.MaxDelay; i++ {
		delay *= 2
	}
	delay = min(delay, r.config.MaxDelay)

	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
