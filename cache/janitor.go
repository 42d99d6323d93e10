package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/llmguard/observe"
)

// DefaultSweepInterval is the Janitor's default period.
const DefaultSweepInterval = time.Minute

// Janitor periodically sweeps expired entries.
type Janitor struct {
	sweeper  Sweeper
	interval time.Duration
	logger   observe.Logger
}

// NewJanitor creates a Janitor. A non-positive interval uses
// DefaultSweepInterval.
func NewJanitor(s Sweeper, interval time.Duration, logger observe.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Janitor{sweeper: s, interval: interval, logger: logger}
}

// Run sweeps every interval until ctx is done. It always returns nil so it
// can run under an errgroup.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := j.sweeper.Sweep(); n > 0 {
				j.logger.Debug(ctx, "swept expired cache entries",
					observe.Field{Key: "removed", Value: n},
				)
			}
		}
	}
}
