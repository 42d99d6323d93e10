package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// ErrDenied is matched by the error returned from Decision.Err.
var ErrDenied = errors.New("ratelimit: request denied")

// Request describes one admission check.
type Request struct {
	ClientKey   string
	Method      string
	ToolName    string
	Timestamp   time.Time // zero means now
	PayloadSize int
}

// Decision is the outcome of CheckAdmission.
type Decision struct {
	Allowed      bool
	RetryAfter   time.Duration
	LimitType    string
	CurrentCount int
	Limit        int
}

func allowed() Decision {
	return Decision{Allowed: true}
}

func denied(limitType string, retryAfter time.Duration, current, limit int) Decision {
	return Decision{
		RetryAfter:   retryAfter,
		LimitType:    limitType,
		CurrentCount: current,
		Limit:        limit,
	}
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (d Decision) RetryAfterSeconds() int64 {
	return int64((d.RetryAfter + time.Second - 1) / time.Second)
}

// Err returns nil when allowed, otherwise a *DeniedError.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Decision: d}
}

// DeniedError carries a denied Decision.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("ratelimit: %s limit exceeded (%d/%d), retry after %s",
		e.Decision.LimitType, e.Decision.CurrentCount, e.Decision.Limit, e.Decision.RetryAfter)
}

func (e *DeniedError) Unwrap() error {
	return ErrDenied
}
