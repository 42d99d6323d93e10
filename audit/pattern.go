package audit

import "time"

// pattern is one client's behavioral history.
type pattern struct {
	requests     int
	failedAuth   int
	suspicious   int
	lastActivity time.Time
	score        int
}

// observe counts e against the pattern and returns the risk adjustment
// for e.
func (p *pattern) observe(e Event) int {
	p.requests++
	p.lastActivity = e.Timestamp

	switch {
	case e.Type == EventTypeAuthentication && e.Result == ResultFailure:
		p.failedAuth++
	case e.Type == EventTypeSuspiciousActivity:
		p.suspicious++
	case e.Type == EventTypeInputValidation && e.Result == ResultRejected:
		p.suspicious++
	}

	switch {
	case p.failedAuth > 5 || p.suspicious > 3:
		p.score = 20
	case p.failedAuth > 3 || p.suspicious > 1:
		p.score = 10
	case p.failedAuth > 1 || p.suspicious > 0:
		p.score = 5
	default:
		p.score = 0
	}
	return p.score
}
