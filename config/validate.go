package config

import (
	"fmt"
	"slices"

	"github.com/jonwraymond/llmguard/observe"
)

// Validate checks the configuration.
func (c *Config) Validate() error {
	var problem string

	switch {
	case c.Upstream.APIKey == "":
		problem = "upstream.api_key is required"
	case c.Server.Environment != EnvDevelopment && c.Server.Environment != EnvProduction:
		problem = fmt.Sprintf("server.environment must be %q or %q", EnvDevelopment, EnvProduction)
	case c.Upstream.BaseURL == "":
		problem = "upstream.base_url is required"
	case c.Upstream.MaxTokens <= 0:
		problem = "upstream.max_tokens must be greater than 0"
	case c.Upstream.Temperature < 0 || c.Upstream.Temperature > 2:
		problem = "upstream.temperature must be between 0.0 and 2.0"
	case c.Upstream.RetryAttempts <= 0:
		problem = "upstream.retry_attempts must be greater than 0"
	case c.Performance.RoutingTimeout <= 0:
		problem = "performance.routing_timeout must be positive"
	case c.Performance.ToolTimeout <= 0:
		problem = "performance.tool_timeout must be positive"
	case c.Performance.MaxConcurrent <= 0:
		problem = "performance.max_concurrent must be greater than 0"
	case c.Cache.Enabled && c.Cache.MaxEntries <= 0:
		problem = "cache.max_entries must be greater than 0 when cache is enabled"
	case c.Cache.Enabled && c.Cache.TTL <= 0:
		problem = "cache.ttl must be positive when cache is enabled"
	case c.CircuitBreaker.Enabled && c.CircuitBreaker.FailureThreshold <= 0:
		problem = "circuit_breaker.failure_threshold must be greater than 0 when enabled"
	case c.RateLimit.Enabled && c.RateLimit.AnomalyWarnThreshold > c.RateLimit.AnomalyBlockThreshold:
		problem = "rate_limit.anomaly_warn_threshold must not exceed anomaly_block_threshold"
	case c.Security.MaxRequestSize <= 0:
		problem = "security.max_request_size must be greater than 0"
	case c.Observe.Tracing.Enabled && !slices.Contains(observe.ValidTracingExporters, c.Observe.Tracing.Exporter):
		problem = fmt.Sprintf("observe.tracing.exporter %q is not supported", c.Observe.Tracing.Exporter)
	case c.Observe.Metrics.Enabled && !slices.Contains(observe.ValidMetricsExporters, c.Observe.Metrics.Exporter):
		problem = fmt.Sprintf("observe.metrics.exporter %q is not supported", c.Observe.Metrics.Exporter)
	}

	if problem != "" {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, problem)
	}
	return nil
}

// Warnings reports settings that are valid but likely mistaken.
func (c *Config) Warnings() []string {
	var w []string
	if c.Performance.RoutingTimeout > c.Performance.RequestTimeout {
		w = append(w, fmt.Sprintf("routing timeout (%s) is greater than request timeout (%s)",
			c.Performance.RoutingTimeout.Std(), c.Performance.RequestTimeout.Std()))
	}
	if c.Performance.ToolTimeout < c.Performance.RequestTimeout {
		w = append(w, fmt.Sprintf("tool timeout (%s) is shorter than one upstream attempt (%s)",
			c.Performance.ToolTimeout.Std(), c.Performance.RequestTimeout.Std()))
	}
	if !c.RateLimit.Enabled {
		w = append(w, "rate limiting is disabled")
	}
	return w
}
