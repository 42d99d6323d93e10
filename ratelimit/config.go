package ratelimit

import "time"

// Limit types reported in a denied Decision.
const (
	LimitGlobal     = "global"
	LimitPerClient  = "per_client"
	LimitSuspicious = "suspicious_activity"

	// limitToolPrefix is joined with a tool category, e.g. "tool_file_analysis".
	limitToolPrefix = "tool_"
)

// MaxRisk is the risk score of a manually blocked client.
const MaxRisk = 100

// Config configures a Limiter.
type Config struct {
	// Enabled turns admission control on. A disabled Limiter admits everything.
	Enabled bool

	// GlobalRequestsPerSecond is the refill rate of the global token bucket.
	// Default: 100
	GlobalRequestsPerSecond int

	// BurstAllowance is added to GlobalRequestsPerSecond to size the
	// global bucket.
	// Default: 10
	BurstAllowance int

	// PerClientRequestsPerMinute is the sliding-window limit per client.
	// Default: 100
	PerClientRequestsPerMinute int

	// Tools sets per-category limits.
	Tools ToolLimits

	// Anomaly configures risk scoring.
	Anomaly AnomalyConfig

	// Window is the per-client sliding window.
	// Default: 60s
	Window time.Duration

	// IdleTTL is how long an idle client is remembered.
	// Default: 1h
	IdleTTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// ToolLimits holds requests-per-minute limits per tool category.
type ToolLimits struct {
	// DeepSeekQueryPerMinute limits the query tools.
	// Default: 30
	DeepSeekQueryPerMinute int

	// FileAnalysisPerMinute limits the file analysis tools.
	// Default: 20
	FileAnalysisPerMinute int
}

// AnomalyConfig configures the risk score.
type AnomalyConfig struct {
	// WarnThreshold logs a warning when the score exceeds it.
	// Default: 25
	WarnThreshold int

	// BlockThreshold denies the request when the score exceeds it.
	// Default: 50
	BlockThreshold int

	// RapidRequestsPerSecond is the number of admitted requests in the last
	// second above which a request counts as rapid.
	// Default: 5
	RapidRequestsPerSecond int

	// LargeRequestBytes is the payload size above which a request counts
	// as oversized.
	// Default: 100000
	LargeRequestBytes int

	// Weights multiply each counter in the score.
	Weights RiskWeights
}

// RiskWeights are the per-counter multipliers of the risk score.
type RiskWeights struct {
	Rapid            int // Default: 3
	FailedAuth       int // Default: 5
	Oversize         int // Default: 6
	PatternViolation int // Default: 4
}

// DefaultConfig returns an enabled Config with default limits.
func DefaultConfig() Config {
	return Config{Enabled: true}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.GlobalRequestsPerSecond <= 0 {
		c.GlobalRequestsPerSecond = 100
	}
	if c.BurstAllowance <= 0 {
		c.BurstAllowance = 10
	}
	if c.PerClientRequestsPerMinute <= 0 {
		c.PerClientRequestsPerMinute = 100
	}
	if c.Tools.DeepSeekQueryPerMinute <= 0 {
		c.Tools.DeepSeekQueryPerMinute = 30
	}
	if c.Tools.FileAnalysisPerMinute <= 0 {
		c.Tools.FileAnalysisPerMinute = 20
	}

	a := &c.Anomaly
	if a.WarnThreshold <= 0 {
		a.WarnThreshold = 25
	}
	if a.BlockThreshold <= 0 {
		a.BlockThreshold = 50
	}
	if a.RapidRequestsPerSecond <= 0 {
		a.RapidRequestsPerSecond = 5
	}
	if a.LargeRequestBytes <= 0 {
		a.LargeRequestBytes = 100_000
	}
	w := &a.Weights
	if w.Rapid <= 0 {
		w.Rapid = 3
	}
	if w.FailedAuth <= 0 {
		w.FailedAuth = 5
	}
	if w.Oversize <= 0 {
		w.Oversize = 6
	}
	if w.PatternViolation <= 0 {
		w.PatternViolation = 4
	}

	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = time.Hour
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
