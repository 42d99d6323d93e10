package upstream

// Stats summarizes the protected call path.
type Stats struct {
	TotalRequests       int64   `json:"total_requests"`
	SuccessfulRequests  int64   `json:"successful_requests"`
	FailedRequests      int64   `json:"failed_requests"`
	SuccessRatePercent  float64 `json:"success_rate_percent"`
	CacheHits           int64   `json:"cache_hits"`
	CacheMisses         int64   `json:"cache_misses"`
	CacheHitRatePercent float64 `json:"cache_hit_rate_percent"`
	CircuitBreakerTrips int64   `json:"circuit_breaker_trips"`
	CircuitRejections   int64   `json:"circuit_rejections"`
	CircuitState        string  `json:"circuit_state"`
	InFlight            int     `json:"in_flight"`
	PeakInFlight        int     `json:"peak_in_flight"`
}

// Stats returns current counters. Successful requests include cache hits.
// With no traffic the success rate is 100.
func (p *Protected) Stats() Stats {
	bm := p.breaker.Metrics()
	hm := p.bulkhead.Metrics()

	s := Stats{
		TotalRequests:       p.total.Load(),
		SuccessfulRequests:  p.succeeded.Load(),
		FailedRequests:      p.failed.Load(),
		SuccessRatePercent:  100,
		CacheHits:           p.cacheHits.Load(),
		CacheMisses:         p.cacheMisses.Load(),
		CircuitBreakerTrips: bm.Trips,
		CircuitRejections:   p.rejected.Load(),
		CircuitState:        bm.State.String(),
		InFlight:            hm.Active,
		PeakInFlight:        hm.Peak,
	}
	if s.TotalRequests > 0 {
		s.SuccessRatePercent = float64(s.SuccessfulRequests) / float64(s.TotalRequests) * 100
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRatePercent = float64(s.CacheHits) / float64(lookups) * 100
	}
	return s
}
