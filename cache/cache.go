package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength bounds cache keys. Keys produced by ChatKeyer are far
// shorter; the bound catches callers that pass raw prompts as keys.
const MaxKeyLength = 512

var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache stores serialized upstream responses keyed by request digest.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Expiry: an entry is never returned once its TTL has elapsed.
// - Errors: Get never errors; a miss is (nil, false).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value for ttl. A non-positive ttl stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Sweeper removes expired entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

// Stats is a snapshot of cache counters, as reported by
// performance/metrics and the cache health check.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	Expired    int64   `json:"expired"`
	HitRate    float64 `json:"hit_rate"`
}

// StatsReporter exposes cache counters.
type StatsReporter interface {
	Stats() Stats
}

// ValidateKey rejects blank keys, keys over MaxKeyLength and keys
// containing line breaks.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "", strings.ContainsAny(key, "\r\n"):
		return ErrInvalidKey
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	}
	return nil
}
