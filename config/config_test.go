package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "llmguard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv("", envMap(map[string]string{"DEEPSEEK_API_KEY": "sk-test"}))
	if err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}

	if cfg.Upstream.BaseURL != "https://api.deepseek.com" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.Model != "deepseek-chat" {
		t.Errorf("Model = %q", cfg.Upstream.Model)
	}
	if cfg.Performance.RoutingTimeout.Std() != 100*time.Millisecond {
		t.Errorf("RoutingTimeout = %v, want 100ms", cfg.Performance.RoutingTimeout.Std())
	}
	if cfg.Cache.TTL.Std() != 5*time.Minute {
		t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL.Std())
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.PerClientRPM != 100 {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.Production() {
		t.Error("default environment should not be production")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  environment: production
  http_addr: ":9090"
upstream:
  api_key: from-file
  model: deepseek-coder
  timeout: 15s
cache:
  ttl: 2m
  max_entries: 50
rate_limit:
  per_client_rpm: 10
`)

	cfg, err := LoadWithEnv(path, envMap(map[string]string{
		"DEEPSEEK_MODEL":     "deepseek-reasoner",
		"ROUTING_TIMEOUT_MS": "250",
		"CACHE_ENABLED":      "false",
	}))
	if err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}

	if !cfg.Production() || cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Upstream.APIKey != "from-file" {
		t.Errorf("APIKey = %q, want from-file", cfg.Upstream.APIKey)
	}
	if cfg.Upstream.Model != "deepseek-reasoner" {
		t.Errorf("Model = %q, env should override file", cfg.Upstream.Model)
	}
	if cfg.Upstream.Timeout.Std() != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Upstream.Timeout.Std())
	}
	if cfg.Performance.RoutingTimeout.Std() != 250*time.Millisecond {
		t.Errorf("RoutingTimeout = %v, want 250ms", cfg.Performance.RoutingTimeout.Std())
	}
	if cfg.Cache.Enabled || cfg.Cache.MaxEntries != 50 || cfg.Cache.TTL.Std() != 2*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.RateLimit.PerClientRPM != 10 || cfg.RateLimit.GlobalRPS != 100 {
		t.Errorf("RateLimit = %+v, file should overlay defaults", cfg.RateLimit)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr error
		wantMsg string
	}{
		{
			name:    "missing key",
			wantErr: ErrInvalidConfig,
			wantMsg: "api_key is required",
		},
		{
			name:    "bad env int",
			env:     map[string]string{"DEEPSEEK_API_KEY": "k", "DEEPSEEK_MAX_TOKENS": "lots"},
			wantErr: ErrInvalidConfig,
			wantMsg: "DEEPSEEK_MAX_TOKENS",
		},
		{
			name:    "temperature out of range",
			env:     map[string]string{"DEEPSEEK_API_KEY": "k", "DEEPSEEK_TEMPERATURE": "2.5"},
			wantErr: ErrInvalidConfig,
			wantMsg: "temperature",
		},
		{
			name:    "cache without entries",
			env:     map[string]string{"DEEPSEEK_API_KEY": "k", "CACHE_MAX_ENTRIES": "0"},
			wantErr: ErrInvalidConfig,
			wantMsg: "max_entries",
		},
		{
			name:    "breaker without threshold",
			env:     map[string]string{"DEEPSEEK_API_KEY": "k", "CIRCUIT_BREAKER_FAILURE_THRESHOLD": "0"},
			wantErr: ErrInvalidConfig,
			wantMsg: "failure_threshold",
		},
		{
			name:    "unknown environment",
			file:    "server:\n  environment: staging\nupstream:\n  api_key: k\n",
			wantErr: ErrInvalidConfig,
			wantMsg: "server.environment",
		},
		{
			name:    "unknown yaml key",
			file:    "upstream:\n  api_key: k\n  apikey: typo\n",
			wantMsg: "apikey",
		},
		{
			name:    "bad duration",
			file:    "upstream:\n  api_key: k\n  timeout: soon\n",
			wantMsg: "soon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}

			_, err := LoadWithEnv(path, envMap(tt.env))
			if err == nil {
				t.Fatal("LoadWithEnv() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"), envMap(nil)); err == nil {
		t.Error("LoadWithEnv() should fail for a missing file")
	}
}

func TestWarnings(t *testing.T) {
	cfg := Default()
	cfg.Performance.RoutingTimeout = Duration(time.Minute)
	cfg.RateLimit.Enabled = false

	w := cfg.Warnings()
	if len(w) != 2 {
		t.Fatalf("Warnings() = %v, want 2", w)
	}

	cfg = Default()
	cfg.Performance.ToolTimeout = Duration(time.Second)
	if w := cfg.Warnings(); len(w) != 1 || !strings.Contains(w[0], "tool timeout") {
		t.Errorf("Warnings() = %v, want the tool timeout warning", w)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("LLMGUARD_TEST_UPSTREAM_KEY", "sk-resolved")

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "plain value", key: "sk-plain", want: "sk-plain"},
		{name: "env reference", key: "secretref:env:LLMGUARD_TEST_UPSTREAM_KEY", want: "sk-resolved"},
		{name: "expanded variable", key: "${LLMGUARD_TEST_UPSTREAM_KEY}", want: "sk-resolved"},
		{name: "unknown provider", key: "secretref:nowhere:x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Upstream.APIKey = tt.key

			err := cfg.Resolve(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && cfg.Upstream.APIKey != tt.want {
				t.Errorf("APIKey = %q, want %q", cfg.Upstream.APIKey, tt.want)
			}
		})
	}
}

func TestResolve_FileProvider(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "upstream.key"), []byte("sk-from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := Default()
	cfg.Upstream.APIKey = "secretref:file:upstream.key"
	cfg.Secrets.Providers = map[string]map[string]any{
		"file": {"base_dir": dir},
	}

	if err := cfg.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Upstream.APIKey != "sk-from-file" {
		t.Errorf("APIKey = %q, want sk-from-file", cfg.Upstream.APIKey)
	}
}
