// Package health reports the state of each gateway component.
//
// A Checker inspects one component (circuit breaker, rate limiter, response
// cache, auditor, process memory) and returns a Result. The Aggregator runs
// every registered checker concurrently under a deadline and folds the
// results into a Report, which backs both the security/status method and
// the HTTP probes:
//
//	agg := health.NewAggregator(health.AggregatorConfig{Timeout: 2 * time.Second})
//	agg.Register(health.NewBreakerChecker("circuit_breaker", breaker))
//	agg.Register(health.NewLimiterChecker(limiter))
//
//	report := agg.Report(ctx)
//	if report.Status == health.StatusUnhealthy {
//	    ...
//	}
//
// RegisterHandlers mounts /healthz (liveness), /readyz (readiness) and
// /health (detailed JSON report) on a mux.
package health
