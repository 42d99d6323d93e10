package secret

import (
	"context"
	"time"

	"github.com/jonwraymond/llmguard/observe"
	"github.com/jonwraymond/llmguard/sanitize"
)

// PublicErrorMessage is the only error text callers see in production.
const PublicErrorMessage = "Request processing failed"

// PublicError is the caller-facing form of an internal error.
type PublicError struct {
	Error     string    `json:"error"`
	Details   string    `json:"details,omitempty"`
	Context   string    `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorSanitizer converts internal errors into PublicErrors.
type ErrorSanitizer struct {
	production bool
	logger     observe.Logger
	now        func() time.Time
}

// NewErrorSanitizer creates an ErrorSanitizer. In production mode public
// errors carry only PublicErrorMessage; otherwise they also carry the
// scrubbed error text and the operation name.
func NewErrorSanitizer(production bool, logger observe.Logger) *ErrorSanitizer {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &ErrorSanitizer{
		production: production,
		logger:     logger,
		now:        time.Now,
	}
}

// Production reports whether details are withheld.
func (s *ErrorSanitizer) Production() bool {
	return s.production
}

// SanitizeError logs err in full and returns its public form.
func (s *ErrorSanitizer) SanitizeError(ctx context.Context, err error, op string) PublicError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.logger.Error(ctx, "request failed",
		observe.Field{Key: "operation", Value: op},
		observe.Field{Key: "error", Value: msg},
	)

	pub := PublicError{
		Error:     PublicErrorMessage,
		Timestamp: s.now().UTC(),
	}
	if !s.production {
		pub.Details = sanitize.Scrub(msg)
		pub.Context = op
	}
	return pub
}
