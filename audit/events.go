package audit

import (
	"context"
	"strconv"
)

// Source identifies who triggered an event. Any field may be empty.
type Source struct {
	ClientID  string
	IP        string
	UserAgent string
}

func (s Source) apply(e Event) Event {
	e.ClientID = s.ClientID
	e.SourceIP = s.IP
	e.UserAgent = s.UserAgent
	return e
}

// AuthenticationEvent records a credential check.
func (a *Auditor) AuthenticationEvent(ctx context.Context, src Source, success bool, details map[string]string) Event {
	e := NewEvent(EventTypeAuthentication, SeverityMedium, "authentication_failure")
	e.Result = ResultFailure
	if success {
		e.Severity = SeverityInfo
		e.Action = "authentication_success"
		e.Result = ResultSuccess
	}
	e.Details = details
	return a.Record(ctx, src.apply(e))
}

// RateLimitEvent records an admission denial.
func (a *Auditor) RateLimitEvent(ctx context.Context, src Source, limitType string, current, limit int) Event {
	e := NewEvent(EventTypeRateLimiting, SeverityMedium, "rate_limit_exceeded")
	e.Result = ResultBlocked
	e.RiskScore = 10
	e.Details = map[string]string{
		"limit_type":    limitType,
		"current_count": strconv.Itoa(current),
		"limit":         strconv.Itoa(limit),
	}
	return a.Record(ctx, src.apply(e))
}

// ValidationFailure records a rejected request.
func (a *Auditor) ValidationFailure(ctx context.Context, src Source, field, reason string) Event {
	e := NewEvent(EventTypeInputValidation, SeverityMedium, "input_validation_failed")
	e.Result = ResultRejected
	e.RiskScore = 15
	e.Details = map[string]string{
		"field": field,
		"error": reason,
	}
	return a.Record(ctx, src.apply(e))
}

// SuspiciousActivity records detected anomalous behavior. The severity
// follows the risk score.
func (a *Auditor) SuspiciousActivity(ctx context.Context, src Source, activity string, risk int, details map[string]string) Event {
	e := NewEvent(EventTypeSuspiciousActivity, SeverityForRisk(risk), "suspicious_activity_"+activity)
	e.Result = ResultDetected
	e.RiskScore = risk
	e.Details = details
	return a.Record(ctx, src.apply(e))
}

// DataAccess records a dispatched method call.
func (a *Auditor) DataAccess(ctx context.Context, src Source, method, resource string, success bool) Event {
	e := NewEvent(EventTypeDataAccess, SeverityInfo, "data_access")
	e.Method = method
	e.Resource = resource
	e.Result = ResultFailure
	if success {
		e.Result = ResultSuccess
	}
	return a.Record(ctx, src.apply(e))
}
