package cache

import (
	"context"
	"hash/maphash"
	"sync"
	"sync/atomic"
	"time"
)

const shardCount = 16

// MemoryOptions configures a MemoryCache.
type MemoryOptions struct {
	// MaxEntries bounds the number of entries. When full, the entry closest
	// to expiry is evicted. Zero means unbounded.
	MaxEntries int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// MemoryCache is a sharded in-memory TTL cache.
type MemoryCache struct {
	shards [shardCount]shard
	seed   maphash.Seed
	now    func() time.Time
	max    int

	// insertMu serializes inserts of new keys so MaxEntries is exact.
	insertMu sync.Mutex
	size     atomic.Int64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	expired   atomic.Int64
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	value     []byte
	createdAt time.Time
	ttl       time.Duration
}

func (e *entry) expiresAt() time.Time {
	return e.createdAt.Add(e.ttl)
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache(opts MemoryOptions) *MemoryCache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &MemoryCache{
		seed: maphash.MakeSeed(),
		now:  opts.Now,
		max:  max(opts.MaxEntries, 0),
	}
	for i := range c.shards {
		c.shards[i].entries = make(map[string]*entry)
	}
	return c
}

func (c *MemoryCache) shardFor(key string) *shard {
	return &c.shards[maphash.String(c.seed, key)%shardCount]
}

// Get returns the value for key. Expired entries are removed lazily.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	s := c.shardFor(key)

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if e.expired(c.now()) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur == e {
			delete(s.entries, key)
			c.size.Add(-1)
			c.expired.Add(1)
		}
		s.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.value, true
}

// Set stores value for ttl. A non-positive ttl stores nothing.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := ValidateKey(key); err != nil {
		return err
	}

	e := &entry{value: value, createdAt: c.now(), ttl: ttl}
	s := c.shardFor(key)

	if c.replace(s, key, e) {
		return nil
	}

	c.insertMu.Lock()
	defer c.insertMu.Unlock()

	if c.replace(s, key, e) {
		return nil
	}
	if c.max > 0 && c.size.Load() >= int64(c.max) {
		c.evictOne()
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	c.size.Add(1)
	return nil
}

// replace overwrites key if present.
func (c *MemoryCache) replace(s *shard, key string, e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	s.entries[key] = e
	return true
}

// evictOne removes the entry closest to expiry. Caller holds insertMu.
func (c *MemoryCache) evictOne() {
	var (
		victim     string
		victimAt   time.Time
		victimFrom *shard
	)
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		for k, e := range s.entries {
			if at := e.expiresAt(); victimFrom == nil || at.Before(victimAt) {
				victim, victimAt, victimFrom = k, at, s
			}
		}
		s.mu.RUnlock()
	}
	if victimFrom == nil {
		return
	}

	victimFrom.mu.Lock()
	if _, ok := victimFrom.entries[victim]; ok {
		delete(victimFrom.entries, victim)
		c.size.Add(-1)
		c.evictions.Add(1)
	}
	victimFrom.mu.Unlock()
}

// Delete removes key. Idempotent.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	s := c.shardFor(key)
	s.mu.Lock()
	if _, ok := s.entries[key]; ok {
		delete(s.entries, key)
		c.size.Add(-1)
	}
	s.mu.Unlock()
	return nil
}

// Sweep removes every expired entry and returns how many it removed.
func (c *MemoryCache) Sweep() int {
	now := c.now()
	removed := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for k, e := range s.entries {
			if e.expired(now) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	c.size.Add(-int64(removed))
	c.expired.Add(int64(removed))
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	return int(c.size.Load())
}

// Stats returns current counters.
func (c *MemoryCache) Stats() Stats {
	s := Stats{
		Entries:    c.Len(),
		MaxEntries: c.max,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		Expired:    c.expired.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

var (
	_ Cache         = (*MemoryCache)(nil)
	_ Sweeper       = (*MemoryCache)(nil)
	_ StatsReporter = (*MemoryCache)(nil)
)
