package config

import "time"

// Environments accepted in ServerConfig.Environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full gateway configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Upstream       UpstreamConfig       `yaml:"upstream"`
	Performance    PerformanceConfig    `yaml:"performance"`
	Cache          CacheConfig          `yaml:"cache"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Security       SecurityConfig       `yaml:"security"`
	Secrets        SecretsConfig        `yaml:"secrets"`
	Observe        ObserveConfig        `yaml:"observe"`
}

// ServerConfig configures the process.
type ServerConfig struct {
	// Environment is "development" or "production".
	Environment string `yaml:"environment"`

	// HTTPAddr serves health probes and metrics. Empty disables it.
	HTTPAddr string `yaml:"http_addr"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig configures the chat-completion API.
type UpstreamConfig struct {
	APIKey         string   `yaml:"api_key"`
	BaseURL        string   `yaml:"base_url"`
	Model          string   `yaml:"model"`
	MaxTokens      int      `yaml:"max_tokens"`
	Temperature    float64  `yaml:"temperature"`
	Timeout        Duration `yaml:"timeout"`
	RetryAttempts  int      `yaml:"retry_attempts"`
	RetryBaseDelay Duration `yaml:"retry_base_delay"`
}

// PerformanceConfig configures dispatch limits.
type PerformanceConfig struct {
	// RoutingTimeout bounds the dispatch of one request.
	RoutingTimeout Duration `yaml:"routing_timeout"`

	// ToolTimeout bounds one tool call, upstream retries included.
	ToolTimeout Duration `yaml:"tool_timeout"`

	// RequestTimeout bounds a single upstream attempt.
	RequestTimeout Duration `yaml:"request_timeout"`

	// MaxConcurrent bounds in-flight upstream calls.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// CacheConfig configures response memoization.
type CacheConfig struct {
	Enabled       bool     `yaml:"enabled"`
	TTL           Duration `yaml:"ttl"`
	MaxEntries    int      `yaml:"max_entries"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// CircuitBreakerConfig configures the upstream breaker.
type CircuitBreakerConfig struct {
	Enabled          bool     `yaml:"enabled"`
	FailureThreshold int      `yaml:"failure_threshold"`
	RecoveryTimeout  Duration `yaml:"recovery_timeout"`
	HalfOpenMaxCalls int      `yaml:"half_open_max_calls"`
}

// RateLimitConfig configures admission control.
type RateLimitConfig struct {
	Enabled               bool     `yaml:"enabled"`
	GlobalRPS             int      `yaml:"global_rps"`
	PerClientRPM          int      `yaml:"per_client_rpm"`
	BurstAllowance        int      `yaml:"burst_allowance"`
	DeepSeekQueryRPM      int      `yaml:"deepseek_query_rpm"`
	FileAnalysisRPM       int      `yaml:"file_analysis_rpm"`
	AnomalyWarnThreshold  int      `yaml:"anomaly_warn_threshold"`
	AnomalyBlockThreshold int      `yaml:"anomaly_block_threshold"`
	CleanupInterval       Duration `yaml:"cleanup_interval"`
}

// SecurityConfig configures validation, auditing and error exposure.
type SecurityConfig struct {
	MaxRequestSize  int      `yaml:"max_request_size"`
	MaxStringLength int      `yaml:"max_string_length"`
	AllowedTools    []string `yaml:"allowed_tools"`
	AuditEnabled    bool     `yaml:"audit_enabled"`
	AuditCapacity   int      `yaml:"audit_capacity"`
}

// SecretsConfig configures secret providers by name. The env provider is
// always available.
type SecretsConfig struct {
	Strict    bool                      `yaml:"strict"`
	Providers map[string]map[string]any `yaml:"providers"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	ServiceName string        `yaml:"service_name"`
	Tracing     TracingConfig `yaml:"tracing"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Logging     LoggingConfig `yaml:"logging"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`
	SamplePct float64 `yaml:"sample_pct"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Environment:     EnvDevelopment,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Upstream: UpstreamConfig{
			BaseURL:        "https://api.deepseek.com",
			Model:          "deepseek-chat",
			MaxTokens:      4096,
			Temperature:    0.7,
			Timeout:        Duration(60 * time.Second),
			RetryAttempts:  3,
			RetryBaseDelay: Duration(time.Second),
		},
		Performance: PerformanceConfig{
			RoutingTimeout: Duration(100 * time.Millisecond),
			ToolTimeout:    Duration(10 * time.Minute),
			RequestTimeout: Duration(30 * time.Second),
			MaxConcurrent:  100,
		},
		Cache: CacheConfig{
			Enabled:       true,
			TTL:           Duration(300 * time.Second),
			MaxEntries:    1000,
			SweepInterval: Duration(time.Minute),
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			RecoveryTimeout:  Duration(60 * time.Second),
			HalfOpenMaxCalls: 3,
		},
		RateLimit: RateLimitConfig{
			Enabled:               true,
			GlobalRPS:             100,
			PerClientRPM:          100,
			BurstAllowance:        10,
			DeepSeekQueryRPM:      30,
			FileAnalysisRPM:       20,
			AnomalyWarnThreshold:  25,
			AnomalyBlockThreshold: 50,
			CleanupInterval:       Duration(5 * time.Minute),
		},
		Security: SecurityConfig{
			MaxRequestSize:  1 << 20,
			MaxStringLength: 10000,
			AuditEnabled:    true,
			AuditCapacity:   1000,
		},
		Observe: ObserveConfig{
			ServiceName: "llmguard",
			Tracing:     TracingConfig{Exporter: "none", SamplePct: 1},
			Metrics:     MetricsConfig{Exporter: "none"},
			Logging:     LoggingConfig{Enabled: true, Level: "info", Format: "json"},
		},
	}
}

// Production reports whether the gateway runs in production mode.
func (c *Config) Production() bool {
	return c.Server.Environment == EnvProduction
}
