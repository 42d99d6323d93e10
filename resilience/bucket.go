package resilience

import (
	"sync"
	"time"
)

// BucketConfig configures a leaky bucket.
type BucketConfig struct {
	// Capacity is the maximum number of tokens.
	// Default: 60
	Capacity int

	// RefillAmount is the number of tokens added per RefillInterval.
	// Default: Capacity
	RefillAmount int

	// RefillInterval is how often RefillAmount tokens are added.
	// Default: 1 minute
	RefillInterval time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Bucket is a leaky bucket: tokens are refilled in whole multiples of
// RefillAmount for every full RefillInterval elapsed, capped at Capacity.
// It starts full.
type Bucket struct {
	config BucketConfig

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// NewBucket creates a full bucket.
func NewBucket(config BucketConfig) *Bucket {
	if config.Capacity <= 0 {
		config.Capacity = 60
	}
	if config.RefillAmount <= 0 {
		config.RefillAmount = config.Capacity
	}
	if config.RefillInterval <= 0 {
		config.RefillInterval = time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Bucket{
		config:     config,
		tokens:     config.Capacity,
		lastRefill: config.Now(),
	}
}

// TryAcquire takes n tokens if available and reports whether it did.
func (b *Bucket) TryAcquire(n int) bool {
	return b.TryAcquireAt(b.config.Now(), n)
}

// TryAcquireAt is TryAcquire with refills computed as of now.
func (b *Bucket) TryAcquireAt(now time.Time, n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)
	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

// Return gives back n tokens taken for a call that did not go ahead.
func (b *Bucket) Return(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = min(b.config.Capacity, b.tokens+n)
}

// Acquire takes one token or returns ErrBucketEmpty.
func (b *Bucket) Acquire() error {
	if !b.TryAcquire(1) {
		return ErrBucketEmpty
	}
	return nil
}

// Available returns the current token count.
func (b *Bucket) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(b.config.Now())
	return b.tokens
}

// Capacity returns the configured capacity.
func (b *Bucket) Capacity() int {
	return b.config.Capacity
}

// Reset refills the bucket to capacity.
func (b *Bucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = b.config.Capacity
	b.lastRefill = b.config.Now()
}

func (b *Bucket) refillLocked(now time.Time) {
	intervals := int(now.Sub(b.lastRefill) / b.config.RefillInterval)
	if intervals <= 0 {
		return
	}

	b.tokens = min(b.config.Capacity, b.tokens+intervals*b.config.RefillAmount)
	b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * b.config.RefillInterval)
}
