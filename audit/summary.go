package audit

// Summary aggregates the stored events and tracked client patterns.
type Summary struct {
	TotalEvents          int             `json:"total_events"`
	EventTypes           map[string]int  `json:"event_types"`
	SeverityDistribution map[string]int  `json:"severity_distribution"`
	AverageRiskScore     float64         `json:"average_risk_score"`
	HighRiskEvents       int             `json:"high_risk_events"`
	PatternsDetected     PatternsSummary `json:"patterns_detected"`
	Enabled              bool            `json:"enabled"`
}

// PatternsSummary aggregates per-client behavior.
type PatternsSummary struct {
	TotalClientsTracked       int `json:"total_clients_tracked"`
	HighRiskClients           int `json:"high_risk_clients"`
	TotalFailedAttempts       int `json:"total_failed_attempts"`
	TotalSuspiciousActivities int `json:"total_suspicious_activities"`
}

// highRiskPatternScore is the pattern score above which a client counts
// as high risk.
const highRiskPatternScore = 15

// Summary returns aggregate counts over the ring.
func (a *Auditor) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Summary{
		TotalEvents:          len(a.ring),
		EventTypes:           make(map[string]int),
		SeverityDistribution: make(map[string]int),
		Enabled:              a.config.Enabled,
	}

	total := 0
	for _, e := range a.ring {
		s.EventTypes[string(e.Type)]++
		s.SeverityDistribution[string(e.Severity)]++
		total += e.RiskScore
		if e.RiskScore > HighRiskScore {
			s.HighRiskEvents++
		}
	}
	if len(a.ring) > 0 {
		s.AverageRiskScore = float64(total) / float64(len(a.ring))
	}

	s.PatternsDetected.TotalClientsTracked = len(a.patterns)
	for _, p := range a.patterns {
		if p.score > highRiskPatternScore {
			s.PatternsDetected.HighRiskClients++
		}
		s.PatternsDetected.TotalFailedAttempts += p.failedAuth
		s.PatternsDetected.TotalSuspiciousActivities += p.suspicious
	}
	return s
}
