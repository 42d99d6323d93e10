package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/llmguard/audit"
	"github.com/jonwraymond/llmguard/cache"
	"github.com/jonwraymond/llmguard/ratelimit"
	"github.com/jonwraymond/llmguard/resilience"
)

// BreakerSource exposes circuit breaker metrics.
type BreakerSource interface {
	Metrics() resilience.CircuitBreakerMetrics
}

// NewBreakerChecker reports an open circuit as unhealthy and a half-open
// circuit as degraded.
func NewBreakerChecker(name string, src BreakerSource) *CheckerFunc {
	return NewCheckerFunc(name, func(context.Context) Result {
		m := src.Metrics()
		details := map[string]any{
			"enabled":  m.Enabled,
			"state":    m.State.String(),
			"failures": m.Failures,
			"trips":    m.Trips,
			"rejected": m.Rejected,
		}

		if !m.Enabled {
			return Healthy("disabled").WithDetails(details)
		}
		switch m.State {
		case resilience.StateOpen:
			return Unhealthy("circuit open", ErrComponentDown).WithDetails(details)
		case resilience.StateHalfOpen:
			return Degraded("circuit half-open").WithDetails(details)
		default:
			return Healthy("circuit closed").WithDetails(details)
		}
	})
}

// LimiterSource exposes rate limiter statistics.
type LimiterSource interface {
	Statistics() ratelimit.Statistics
}

// degradedBlockRate is the block rate percentage at which the limiter
// reports degraded.
const degradedBlockRate = 50.0

// NewLimiterChecker reports a disabled limiter, or one blocking at least
// half of its clients' requests, as degraded.
func NewLimiterChecker(src LimiterSource) *CheckerFunc {
	return NewCheckerFunc("rate_limiting", func(context.Context) Result {
		s := src.Statistics()
		details := map[string]any{
			"enabled":            s.Config.Enabled,
			"total_clients":      s.TotalClients,
			"suspicious_clients": s.SuspiciousClients,
			"block_rate_percent": s.BlockRatePercent,
		}

		switch {
		case !s.Config.Enabled:
			return Degraded("rate limiting disabled").WithDetails(details)
		case s.BlockRatePercent >= degradedBlockRate:
			return Degraded(fmt.Sprintf("block rate %.1f%%", s.BlockRatePercent)).WithDetails(details)
		default:
			return Healthy("active").WithDetails(details)
		}
	})
}

// NewCacheChecker reports a full cache as degraded. A disabled cache is
// healthy.
func NewCacheChecker(src cache.StatsReporter, enabled bool) *CheckerFunc {
	return NewCheckerFunc("response_cache", func(context.Context) Result {
		if !enabled {
			return Healthy("disabled")
		}

		s := src.Stats()
		details := map[string]any{
			"entries":     s.Entries,
			"max_entries": s.MaxEntries,
			"hit_rate":    s.HitRate,
			"evictions":   s.Evictions,
		}
		if s.MaxEntries > 0 && s.Entries >= s.MaxEntries {
			return Degraded("cache at capacity").WithDetails(details)
		}
		return Healthy("active").WithDetails(details)
	})
}

// AuditSource exposes the audit summary.
type AuditSource interface {
	Summary() audit.Summary
}

// NewAuditChecker reports disabled auditing, or tracked high-risk
// clients, as degraded.
func NewAuditChecker(src AuditSource) *CheckerFunc {
	return NewCheckerFunc("audit_logging", func(context.Context) Result {
		s := src.Summary()
		details := map[string]any{
			"enabled":           s.Enabled,
			"total_events":      s.TotalEvents,
			"high_risk_events":  s.HighRiskEvents,
			"high_risk_clients": s.PatternsDetected.HighRiskClients,
		}

		switch {
		case !s.Enabled:
			return Degraded("audit logging disabled").WithDetails(details)
		case s.PatternsDetected.HighRiskClients > 0:
			return Degraded(fmt.Sprintf("%d high-risk clients", s.PatternsDetected.HighRiskClients)).WithDetails(details)
		default:
			return Healthy("active").WithDetails(details)
		}
	})
}
