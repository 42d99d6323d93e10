package resilience

import (
	"context"
	"time"
)

// Op is a unit of work run by the resilience patterns.
type Op func(context.Context) error

// Executor layers the patterns around a single upstream call. From the
// outside in: bulkhead, retry, circuit breaker, per-attempt timeout. One
// bulkhead slot covers all retries and the breaker records every attempt.
type Executor struct {
	bulkhead *Bulkhead
	retry    *Retry
	breaker  *CircuitBreaker
	timeout  *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an Executor. Patterns not configured are skipped.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

// WithTimeout bounds each attempt to d.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(d) }
}

// CircuitBreaker returns the configured breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	return e.breaker
}

// Execute runs op through the configured patterns.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	call := Op(op)
	if e.timeout != nil {
		call = around(call, e.timeout.Execute)
	}
	if e.breaker != nil {
		call = around(call, e.breaker.Execute)
	}
	if e.retry != nil {
		call = around(call, e.retry.Execute)
	}
	if e.bulkhead != nil {
		call = around(call, e.bulkhead.Execute)
	}
	return call(ctx)
}

// around wraps inner in a pattern's Execute method.
func around(inner Op, pattern func(context.Context, func(context.Context) error) error) Op {
	return func(ctx context.Context) error {
		return pattern(ctx, inner)
	}
}
