package ratelimit

import "sync/atomic"

// Statistics is a point-in-time summary of the limiter.
type Statistics struct {
	TotalClients      int              `json:"total_clients"`
	SuspiciousClients int              `json:"suspicious_clients"`
	TotalRequests     int64            `json:"total_requests"`
	TotalBlocked      int64            `json:"total_blocked"`
	BlockRatePercent  float64          `json:"block_rate_percent"`
	Checked           int64            `json:"checked"`
	DeniedByType      map[string]int64 `json:"denied_by_type"`
	Config            StatsConfig      `json:"config"`
}

// StatsConfig is the configuration subset reported with Statistics.
type StatsConfig struct {
	Enabled         bool `json:"enabled"`
	GlobalRPS       int  `json:"global_rps"`
	PerClientRPM    int  `json:"per_client_rpm"`
	DeepSeekRPM     int  `json:"deepseek_rpm"`
	FileAnalysisRPM int  `json:"file_analysis_rpm"`
}

// Statistics aggregates per-client counters. TotalRequests counts admitted
// requests and TotalBlocked counts per-client denials.
func (l *Limiter) Statistics() Statistics {
	s := Statistics{
		Checked:      l.checked.Load(),
		DeniedByType: make(map[string]int64),
		Config: StatsConfig{
			Enabled:         l.config.Enabled,
			GlobalRPS:       l.config.GlobalRequestsPerSecond,
			PerClientRPM:    l.config.PerClientRequestsPerMinute,
			DeepSeekRPM:     l.config.Tools.DeepSeekQueryPerMinute,
			FileAnalysisRPM: l.config.Tools.FileAnalysisPerMinute,
		},
	}

	l.windows.Range(func(_, v any) bool {
		w := v.(*window)
		w.mu.Lock()
		s.TotalClients++
		s.TotalRequests += w.total
		s.TotalBlocked += w.blocked
		w.mu.Unlock()
		return true
	})

	l.trackers.Range(func(_, v any) bool {
		t := v.(*tracker)
		t.mu.Lock()
		if t.risk > 0 {
			s.SuspiciousClients++
		}
		t.mu.Unlock()
		return true
	})

	l.denials.Range(func(k, v any) bool {
		s.DeniedByType[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})

	if s.TotalRequests > 0 {
		s.BlockRatePercent = float64(s.TotalBlocked) / float64(s.TotalRequests) * 100
	}
	return s
}
