package resilience

import "errors"

var (
	// ErrCircuitOpen is returned while the breaker rejects calls, and for
	// half-open calls beyond the probe allowance.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrMaxRetriesExceeded wraps the final error after the last attempt.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrBucketEmpty means a token bucket could not cover the request.
	ErrBucketEmpty = errors.New("resilience: bucket has insufficient tokens")

	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")
	ErrTimeout      = errors.New("resilience: operation timed out")
)
