package audit

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

// Event types.
const (
	EventTypeAuthentication      EventType = "authentication"
	EventTypeAuthorization       EventType = "authorization"
	EventTypeRateLimiting        EventType = "rate_limiting"
	EventTypeInputValidation     EventType = "input_validation"
	EventTypeSuspiciousActivity  EventType = "suspicious_activity"
	EventTypeDataAccess          EventType = "data_access"
	EventTypeConfigurationChange EventType = "configuration_change"
	EventTypeSecurityViolation   EventType = "security_violation"
	EventTypeSystemAccess        EventType = "system_access"
)

// Severity is the importance of an event. It selects the log level.
type Severity string

// Severities, most severe first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// SeverityForRisk maps a risk score to a severity: up to 25 is low, up to
// 50 medium, up to 75 high, above that critical.
func SeverityForRisk(score int) Severity {
	switch {
	case score <= 25:
		return SeverityLow
	case score <= 50:
		return SeverityMedium
	case score <= 75:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// Results recorded on events.
const (
	ResultPending  = "pending"
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultBlocked  = "blocked"
	ResultRejected = "rejected"
	ResultDetected = "detected"
)

// HighRiskScore is the score above which an event counts as high risk.
const HighRiskScore = 50

// maxUserAgentLength caps the stored user agent, in characters.
const maxUserAgentLength = 200

// Event is one audit record. Once stored it is never modified.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Severity  Severity          `json:"severity"`
	SourceIP  string            `json:"source_ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	ClientID  string            `json:"client_id,omitempty"`
	Method    string            `json:"method,omitempty"`
	Resource  string            `json:"resource,omitempty"`
	Action    string            `json:"action"`
	Result    string            `json:"result"`
	Details   map[string]string `json:"details,omitempty"`
	RiskScore int               `json:"risk_score"`
}

// NewEvent creates a pending event with a fresh ID. Record stamps the
// time.
func NewEvent(typ EventType, severity Severity, action string) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     typ,
		Severity: severity,
		Action:   action,
		Result:   ResultPending,
	}
}

// WithDetail returns a copy of e with key set to value.
func (e Event) WithDetail(key, value string) Event {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// PublicEvent is the externally visible form of an Event. It carries no
// client identity.
type PublicEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Severity  Severity          `json:"severity"`
	Method    string            `json:"method,omitempty"`
	Resource  string            `json:"resource,omitempty"`
	Action    string            `json:"action"`
	Result    string            `json:"result"`
	Details   map[string]string `json:"details,omitempty"`
	RiskScore int               `json:"risk_score"`
}

// Public returns the external view of e.
func (e Event) Public() PublicEvent {
	return PublicEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Type:      e.Type,
		Severity:  e.Severity,
		Method:    e.Method,
		Resource:  e.Resource,
		Action:    e.Action,
		Result:    e.Result,
		Details:   e.Details,
		RiskScore: e.RiskScore,
	}
}

// sanitizeUserAgent truncates ua and masks inline credentials.
func sanitizeUserAgent(ua string) string {
	if utf8.RuneCountInString(ua) > maxUserAgentLength {
		ua = string([]rune(ua)[:maxUserAgentLength])
	}
	ua = strings.ReplaceAll(ua, "Bearer ", "[TOKEN]")
	return strings.ReplaceAll(ua, "Authorization:", "[AUTH]")
}
