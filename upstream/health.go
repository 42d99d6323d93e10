package upstream

import (
	"context"
	"fmt"

	"github.com/jonwraymond/llmguard/health"
)

// minSamples is the request count below which the success rate is ignored.
const minSamples = 10

// HealthChecker reports the upstream path degraded when fewer than half
// of at least minSamples requests succeeded.
func (p *Protected) HealthChecker() health.Checker {
	return health.NewCheckerFunc("upstream", func(context.Context) health.Result {
		s := p.Stats()
		details := map[string]any{
			"total_requests":       s.TotalRequests,
			"success_rate_percent": s.SuccessRatePercent,
			"circuit_state":        s.CircuitState,
			"in_flight":            s.InFlight,
		}
		if s.TotalRequests >= minSamples && s.SuccessRatePercent < 50 {
			return health.Degraded(fmt.Sprintf("success rate %.1f%%", s.SuccessRatePercent)).WithDetails(details)
		}
		return health.Healthy("reachable").WithDetails(details)
	})
}
