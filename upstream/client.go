package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client performs chat completions.
type Client interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Read limits for success and error bodies.
const (
	maxResponseBytes = 10 << 20
	maxErrorRead     = 64 << 10
)

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	// BaseURL is the API root, e.g. "https://api.deepseek.com".
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Timeout bounds each HTTP exchange when HTTPClient is nil.
	// Default: 60 seconds
	Timeout time.Duration

	// HTTPClient overrides the transport, for tests.
	HTTPClient *http.Client
}

// HTTPClient calls POST {BaseURL}/chat/completions.
type HTTPClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewHTTPClient creates an HTTPClient.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPClient{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		http:     hc,
	}, nil
}

// ChatCompletion sends req. The request is bound to ctx.
func (c *HTTPClient) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorRead))
		apiErr := newAPIError(resp.StatusCode, string(raw), c.apiKey)
		apiErr.Wait = parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, apiErr
	}

	var out ChatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("upstream: decode response: %w", err)
	}
	return &out, nil
}
