package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/llmguard/cache"
	"github.com/jonwraymond/llmguard/observe"
	"github.com/jonwraymond/llmguard/resilience"
)

// ProtectedConfig configures the protected call path.
type ProtectedConfig struct {
	// Model, MaxTokens and Temperature fill unset request fields.
	Model       string
	MaxTokens   int
	Temperature float64

	// RequestTimeout bounds each attempt.
	// Default: 30 seconds
	RequestTimeout time.Duration

	// RetryAttempts is the total number of attempts.
	// Default: 3
	RetryAttempts int

	// RetryBaseDelay is the delay before the first retry; later delays
	// double, with up to a quarter added as jitter.
	// Default: 1 second
	RetryBaseDelay time.Duration

	// MaxConcurrent bounds in-flight calls.
	// Default: 100
	MaxConcurrent int
}

// Option configures a Protected.
type Option func(*Protected)

// WithBreaker gates calls on cb. Without it the breaker is disabled.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(p *Protected) { p.breaker = cb }
}

// WithMemoizer serves repeated requests from m.
func WithMemoizer(m *cache.Memoizer) Option {
	return func(p *Protected) { p.memo = m }
}

// WithMetrics records upstream calls and cache lookups.
func WithMetrics(m observe.Metrics) Option {
	return func(p *Protected) { p.metrics = m }
}

// WithTracer wraps each attempt in a span.
func WithTracer(t observe.Tracer) Option {
	return func(p *Protected) { p.tracer = t }
}

// Protected is the guarded path to the upstream API.
type Protected struct {
	client   Client
	config   ProtectedConfig
	logger   observe.Logger
	metrics  observe.Metrics
	tracer   observe.Tracer
	breaker  *resilience.CircuitBreaker
	bulkhead *resilience.Bulkhead
	executor *resilience.Executor
	memo     *cache.Memoizer
	keyer    *cache.ChatKeyer

	total       atomic.Int64
	succeeded   atomic.Int64
	failed      atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	rejected    atomic.Int64
}

// NewProtected wraps client.
func NewProtected(client Client, config ProtectedConfig, logger observe.Logger, opts ...Option) *Protected {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 100
	}
	if logger == nil {
		logger = observe.NopLogger()
	}

	p := &Protected{
		client:  client,
		config:  config,
		logger:  logger.With(observe.Field{Key: "component", Value: "upstream"}),
		metrics: observe.NoopMetrics(),
		tracer:  observe.NoopTracer(),
		keyer:   cache.NewChatKeyer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Disabled: true})
	}

	p.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: config.MaxConcurrent})
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: config.RetryAttempts,
		BaseDelay:   config.RetryBaseDelay,
		Jitter:      true,
		RetryIf:     retryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			p.logger.Warn(context.Background(), "upstream attempt failed, retrying",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "delay", Value: delay.String()},
				observe.Field{Key: "error", Value: err.Error()},
			)
		},
	})
	p.executor = resilience.NewExecutor(
		resilience.WithBulkhead(p.bulkhead),
		resilience.WithRetry(retry),
		resilience.WithCircuitBreaker(p.breaker),
		resilience.WithTimeout(config.RequestTimeout),
	)
	return p
}

// retryable skips errors a retry cannot fix: an open circuit, a cancelled
// caller and client-side API errors.
func retryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

// NewRequest builds a request with the configured model and limits.
func (p *Protected) NewRequest(messages ...Message) ChatRequest {
	return ChatRequest{
		Model:       p.config.Model,
		Messages:    messages,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}
}

// Breaker returns the circuit breaker guarding the path.
func (p *Protected) Breaker() *resilience.CircuitBreaker {
	return p.breaker
}

// Complete returns a completion for req, from the cache when an identical
// request was answered within the TTL.
func (p *Protected) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = p.config.Model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = p.config.MaxTokens
	}
	p.total.Add(1)

	resp, err := p.complete(ctx, req)
	if err != nil {
		p.failed.Add(1)
		return nil, err
	}
	p.succeeded.Add(1)
	return resp, nil
}

func (p *Protected) complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.memo == nil || !p.memo.Enabled() {
		return p.call(ctx, req)
	}

	key, err := p.keyer.Key(req.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		p.logger.Warn(ctx, "cache key unavailable, calling upstream directly",
			observe.Field{Key: "error", Value: err.Error()})
		return p.call(ctx, req)
	}

	var fresh *ChatResponse
	data, hit, err := p.memo.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		resp, err := p.call(ctx, req)
		if err != nil {
			return nil, err
		}
		fresh = resp
		return json.Marshal(resp)
	})
	p.metrics.RecordCacheLookup(ctx, hit)
	if hit {
		p.cacheHits.Add(1)
	} else {
		p.cacheMisses.Add(1)
	}
	if err != nil {
		return nil, err
	}
	if fresh != nil {
		return fresh, nil
	}

	var resp ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("upstream: decode cached response: %w", err)
	}
	return &resp, nil
}

func (p *Protected) call(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp *ChatResponse
	err := p.executor.Execute(ctx, func(ctx context.Context) error {
		ctx, span := p.tracer.StartUpstreamSpan(ctx, req.Model)
		start := time.Now()

		r, err := p.client.ChatCompletion(ctx, req)
		p.metrics.RecordUpstream(ctx, req.Model, time.Since(start), err)
		p.tracer.EndSpan(span, err)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})

	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, resilience.ErrCircuitOpen):
		p.rejected.Add(1)
		p.logger.Warn(ctx, "circuit breaker open, request rejected")
		return nil, err
	case errors.Is(err, resilience.ErrMaxRetriesExceeded):
		p.logger.Error(ctx, "upstream request failed",
			observe.Field{Key: "attempts", Value: p.config.RetryAttempts},
			observe.Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
	default:
		return nil, err
	}
}
