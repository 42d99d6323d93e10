package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// LoadFunc produces the value for a missed key.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Memoizer serves values from a Cache and loads misses through fn, with
// concurrent misses for the same key coalesced into one load. Errors are
// never cached.
type Memoizer struct {
	cache  Cache
	policy Policy
	group  singleflight.Group
}

// NewMemoizer creates a Memoizer over c.
func NewMemoizer(c Cache, policy Policy) *Memoizer {
	return &Memoizer{cache: c, policy: policy}
}

// Enabled reports whether the policy caches anything.
func (m *Memoizer) Enabled() bool {
	return m.cache != nil && m.policy.ShouldCache()
}

// Lookup returns the cached value for key without loading.
func (m *Memoizer) Lookup(ctx context.Context, key string) ([]byte, bool) {
	if !m.Enabled() {
		return nil, false
	}
	return m.cache.Get(ctx, key)
}

// Do returns the value for key, calling fn on a miss. hit reports whether
// the value came from the cache. Callers that join an in-flight load
// share its result and error.
func (m *Memoizer) Do(ctx context.Context, key string, fn LoadFunc) (value []byte, hit bool, err error) {
	if !m.Enabled() {
		value, err = fn(ctx)
		return value, false, err
	}

	if cached, ok := m.cache.Get(ctx, key); ok {
		return cached, true, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		// A concurrent load may have filled the key since our miss.
		if cached, ok := m.cache.Get(ctx, key); ok {
			return cached, nil
		}

		result, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		_ = m.cache.Set(ctx, key, result, m.policy.EffectiveTTL(0))
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// Forget removes key from the cache.
func (m *Memoizer) Forget(ctx context.Context, key string) error {
	if m.cache == nil {
		return ErrNilCache
	}
	return m.cache.Delete(ctx, key)
}
