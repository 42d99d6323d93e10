package cache

import "time"

// Policy configures response caching.
type Policy struct {
	// Enabled turns caching on.
	Enabled bool

	// TTL is how long a response stays cached.
	// Default: 5 minutes
	TTL time.Duration

	// MaxTTL clamps override TTLs. Zero means no maximum.
	MaxTTL time.Duration
}

// DefaultPolicy returns an enabled policy with a 5 minute TTL and a 1 hour
// maximum.
func DefaultPolicy() Policy {
	return Policy{
		Enabled: true,
		TTL:     5 * time.Minute,
		MaxTTL:  time.Hour,
	}
}

// NoCachePolicy returns a policy that disables caching.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache reports whether responses should be cached.
func (p Policy) ShouldCache() bool {
	return p.Enabled && p.TTL > 0
}

// EffectiveTTL returns override if positive, else TTL, clamped to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.TTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
