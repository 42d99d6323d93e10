package upstream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrRetriesExhausted wraps the last attempt's error once every retry
	// has failed.
	ErrRetriesExhausted = errors.New("upstream: request failed after retries")

	// ErrMissingAPIKey indicates the client was built without a credential.
	ErrMissingAPIKey = errors.New("upstream: API key is not configured")

	// ErrNoChoices indicates a successful response without any choice.
	ErrNoChoices = errors.New("upstream: response has no choices")
)

// maxErrorBody is the number of characters of an error body kept.
const maxErrorBody = 500

// redactedKey replaces the API key wherever it appears in an error body.
const redactedKey = "[API_KEY_REDACTED]"

// APIError is a non-2xx response from the upstream API.
type APIError struct {
	Status int
	Body   string

	// Wait is the server's Retry-After hint, zero when absent.
	Wait time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream: API error %d: %s", e.Status, e.Body)
}

// Temporary reports whether retrying may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == 429 || e.Status >= 500
}

// RetryAfter returns the server's Retry-After hint.
func (e *APIError) RetryAfter() time.Duration {
	return e.Wait
}

// parseRetryAfter reads the delay-seconds form of Retry-After. HTTP dates
// are ignored.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func newAPIError(status int, body, apiKey string) *APIError {
	if apiKey != "" {
		body = strings.ReplaceAll(body, apiKey, redactedKey)
	}
	if utf8.RuneCountInString(body) > maxErrorBody {
		body = string([]rune(body)[:maxErrorBody])
	}
	return &APIError{Status: status, Body: body}
}
