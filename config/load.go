package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/llmguard/secret"
)

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads defaults, the YAML file at path (if path is non-empty) and the
// process environment, then validates the result.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with a custom environment lookup.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(bytes.NewReader(data), &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decode overlays YAML onto cfg, rejecting unknown keys.
func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// envOverride applies one environment variable.
type envOverride struct {
	key   string
	apply func(cfg *Config, value string) error
}

var envOverrides = []envOverride{
	{"LLMGUARD_ENV", setString(func(c *Config) *string { return &c.Server.Environment })},
	{"LLMGUARD_HTTP_ADDR", setString(func(c *Config) *string { return &c.Server.HTTPAddr })},
	{"LOG_LEVEL", setString(func(c *Config) *string { return &c.Observe.Logging.Level })},
	{"DEEPSEEK_API_KEY", setString(func(c *Config) *string { return &c.Upstream.APIKey })},
	{"DEEPSEEK_BASE_URL", setString(func(c *Config) *string { return &c.Upstream.BaseURL })},
	{"DEEPSEEK_MODEL", setString(func(c *Config) *string { return &c.Upstream.Model })},
	{"DEEPSEEK_MAX_TOKENS", setInt(func(c *Config) *int { return &c.Upstream.MaxTokens })},
	{"DEEPSEEK_TEMPERATURE", setFloat(func(c *Config) *float64 { return &c.Upstream.Temperature })},
	{"DEEPSEEK_TIMEOUT_SECONDS", setDuration(time.Second, func(c *Config) *Duration { return &c.Upstream.Timeout })},
	{"DEEPSEEK_RETRY_ATTEMPTS", setInt(func(c *Config) *int { return &c.Upstream.RetryAttempts })},
	{"MAX_CONCURRENT_REQUESTS", setInt(func(c *Config) *int { return &c.Performance.MaxConcurrent })},
	{"REQUEST_TIMEOUT_MS", setDuration(time.Millisecond, func(c *Config) *Duration { return &c.Performance.RequestTimeout })},
	{"TOOL_TIMEOUT_SECONDS", setDuration(time.Second, func(c *Config) *Duration { return &c.Performance.ToolTimeout })},
	{"ROUTING_TIMEOUT_MS", setDuration(time.Millisecond, func(c *Config) *Duration { return &c.Performance.RoutingTimeout })},
	{"CACHE_ENABLED", setBool(func(c *Config) *bool { return &c.Cache.Enabled })},
	{"CACHE_TTL_SECONDS", setDuration(time.Second, func(c *Config) *Duration { return &c.Cache.TTL })},
	{"CACHE_MAX_ENTRIES", setInt(func(c *Config) *int { return &c.Cache.MaxEntries })},
	{"CIRCUIT_BREAKER_ENABLED", setBool(func(c *Config) *bool { return &c.CircuitBreaker.Enabled })},
	{"CIRCUIT_BREAKER_FAILURE_THRESHOLD", setInt(func(c *Config) *int { return &c.CircuitBreaker.FailureThreshold })},
	{"CIRCUIT_BREAKER_RECOVERY_TIMEOUT", setDuration(time.Second, func(c *Config) *Duration { return &c.CircuitBreaker.RecoveryTimeout })},
	{"CIRCUIT_BREAKER_HALF_OPEN_MAX_CALLS", setInt(func(c *Config) *int { return &c.CircuitBreaker.HalfOpenMaxCalls })},
	{"RATE_LIMIT_ENABLED", setBool(func(c *Config) *bool { return &c.RateLimit.Enabled })},
}

func applyEnv(cfg *Config, lookup LookupFunc) error {
	for _, o := range envOverrides {
		v, ok := lookup(o.key)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, o.key, v, err)
		}
	}
	return nil
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setFloat(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func setBool(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// setDuration parses an integer count of unit.
func setDuration(unit time.Duration, field func(*Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*field(c) = Duration(time.Duration(n) * unit)
		return nil
	}
}

// Resolve replaces a secret reference in the upstream API key with the
// value from its provider. Providers are built from the secrets section;
// env is always available.
func (c *Config) Resolve(ctx context.Context) error {
	resolver, err := c.resolver()
	if err != nil {
		return err
	}
	defer func() { _ = resolver.Close() }()

	key, err := resolver.ResolveValue(ctx, c.Upstream.APIKey)
	if err != nil {
		return fmt.Errorf("config: resolve upstream.api_key: %w", err)
	}
	if key == "" {
		return fmt.Errorf("%w: upstream.api_key resolved to an empty value", ErrInvalidConfig)
	}
	c.Upstream.APIKey = key
	return nil
}

func (c *Config) resolver() (*secret.Resolver, error) {
	registry := secret.NewBuiltinRegistry()
	resolver := secret.NewResolver(c.Secrets.Strict)

	env, err := registry.Create(secret.EnvProviderName, nil)
	if err != nil {
		return nil, err
	}
	resolver.Register(env)

	for name, opts := range c.Secrets.Providers {
		p, err := registry.Create(name, opts)
		if err != nil {
			_ = resolver.Close()
			return nil, fmt.Errorf("config: secrets.providers.%s: %w", name, err)
		}
		resolver.Register(p)
	}
	return resolver, nil
}
