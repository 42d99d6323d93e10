// Package resilience provides the failure-isolation primitives that guard
// calls to the downstream LLM API.
//
// # Patterns
//
//   - CircuitBreaker: stops calling a failing dependency until it is likely
//     to have recovered, then admits a bounded number of trial calls.
//
//   - Retry: retries failed attempts with exponential backoff and jitter.
//     The default schedule waits base*2^(n-1) plus up to a quarter of that.
//     A longer Retry-After hint on the error replaces the backoff delay.
//
//   - Bucket: a leaky bucket refilled in fixed amounts at fixed intervals,
//     used for per-tool-category admission.
//
//   - Bulkhead: bounds concurrent downstream calls with a weighted
//     semaphore from golang.org/x/sync.
//
//   - Timeout: bounds a single attempt and cancels it on expiry.
//
// # Usage
//
// The Executor composes the patterns into the protected call path:
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    RecoveryTimeout:  time.Minute,
//	})
//
//	exec := resilience.NewExecutor(
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 100})),
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3, Jitter: true})),
//	    resilience.WithTimeout(30*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return callUpstream(ctx)
//	})
package resilience
