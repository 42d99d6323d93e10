package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig configures the heap checker.
type MemoryCheckerConfig struct {
	// MaxHeapBytes is the heap size considered full. Zero uses the
	// memory obtained from the OS.
	MaxHeapBytes uint64

	// Warning is the fraction of MaxHeapBytes that reports degraded.
	// Default: 0.8
	Warning float64

	// Critical is the fraction of MaxHeapBytes that reports unhealthy.
	// Default: 0.95
	Critical float64
}

// MemoryChecker reports heap usage.
type MemoryChecker struct {
	config MemoryCheckerConfig
	read   func(*runtime.MemStats)
}

// NewMemoryChecker creates a heap checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.Warning <= 0 || config.Warning >= 1 {
		config.Warning = 0.8
	}
	if config.Critical <= config.Warning || config.Critical > 1 {
		config.Critical = max(0.95, config.Warning)
	}
	return &MemoryChecker{config: config, read: runtime.ReadMemStats}
}

// Name returns "memory".
func (m *MemoryChecker) Name() string { return "memory" }

// Check reads runtime memory statistics.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("check cancelled", err)
	}

	var stats runtime.MemStats
	m.read(&stats)

	limit := m.config.MaxHeapBytes
	if limit == 0 {
		limit = stats.Sys
	}
	details := map[string]any{
		"heap_alloc_bytes": stats.HeapAlloc,
		"sys_bytes":        stats.Sys,
		"num_gc":           stats.NumGC,
		"goroutines":       runtime.NumGoroutine(),
	}
	if limit == 0 {
		return Healthy("memory stats unavailable").WithDetails(details)
	}

	ratio := float64(stats.HeapAlloc) / float64(limit)
	details["usage_percent"] = ratio * 100
	msg := fmt.Sprintf("heap usage %.1f%%", ratio*100)

	switch {
	case ratio >= m.config.Critical:
		return Unhealthy(msg, ErrComponentDown).WithDetails(details)
	case ratio >= m.config.Warning:
		return Degraded(msg).WithDetails(details)
	default:
		return Healthy(msg).WithDetails(details)
	}
}
