package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/llmguard/audit"
	"github.com/jonwraymond/llmguard/cache"
	"github.com/jonwraymond/llmguard/config"
	"github.com/jonwraymond/llmguard/gateway"
	"github.com/jonwraymond/llmguard/health"
	"github.com/jonwraymond/llmguard/observe"
	"github.com/jonwraymond/llmguard/observe/exporters"
	"github.com/jonwraymond/llmguard/ratelimit"
	"github.com/jonwraymond/llmguard/resilience"
	"github.com/jonwraymond/llmguard/sanitize"
	"github.com/jonwraymond/llmguard/secret"
	"github.com/jonwraymond/llmguard/upstream"
	"github.com/jonwraymond/llmguard/validate"
)

// app holds the assembled components.
type app struct {
	cfg     *config.Config
	logger  observe.Logger
	gateway *gateway.Gateway
	limiter *ratelimit.Limiter
	cache   *cache.MemoryCache
	health  *health.Aggregator
	client  ratelimit.ClientIdentifier
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Resolve(ctx); err != nil {
		return err
	}

	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: cfg.Observe.ServiceName,
		Version:     version,
		Environment: cfg.Server.Environment,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.Observe.Tracing.Enabled,
			Exporter:  cfg.Observe.Tracing.Exporter,
			SamplePct: cfg.Observe.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.Observe.Metrics.Enabled,
			Exporter: cfg.Observe.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: cfg.Observe.Logging.Enabled,
			Level:   cfg.Observe.Logging.Level,
			Format:  cfg.Observe.Logging.Format,
		},
	})
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	logger := obs.Logger()
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings() {
		logger.Warn(ctx, "configuration warning", observe.Field{Key: "warning", Value: w})
	}

	a, err := newApp(cfg, obs)
	if err != nil {
		return err
	}
	return a.serve(ctx, os.Stdin, os.Stdout)
}

// newApp builds every component from cfg.
func newApp(cfg *config.Config, obs observe.Observer) (*app, error) {
	logger := obs.Logger()

	metrics, err := observe.NewMetrics(obs.Meter())
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	tracer := observe.NewTracer(obs.Tracer())

	// The manager validates the credential format and logs only its
	// fingerprint.
	if _, err := secret.NewManager(cfg.Upstream.APIKey, logger); err != nil {
		return nil, fmt.Errorf("upstream.api_key: %w", err)
	}

	sanitizer := sanitize.New(sanitize.Config{MaxStringLength: cfg.Security.MaxStringLength})
	validator := validate.New(validate.Config{
		MaxRequestSize: cfg.Security.MaxRequestSize,
		AllowedTools:   cfg.Security.AllowedTools,
	}, sanitizer)

	limiter := ratelimit.New(ratelimit.Config{
		Enabled:                    cfg.RateLimit.Enabled,
		GlobalRequestsPerSecond:    cfg.RateLimit.GlobalRPS,
		BurstAllowance:             cfg.RateLimit.BurstAllowance,
		PerClientRequestsPerMinute: cfg.RateLimit.PerClientRPM,
		Tools: ratelimit.ToolLimits{
			DeepSeekQueryPerMinute: cfg.RateLimit.DeepSeekQueryRPM,
			FileAnalysisPerMinute:  cfg.RateLimit.FileAnalysisRPM,
		},
		Anomaly: ratelimit.AnomalyConfig{
			WarnThreshold:  cfg.RateLimit.AnomalyWarnThreshold,
			BlockThreshold: cfg.RateLimit.AnomalyBlockThreshold,
		},
	}, logger)

	auditor := audit.New(audit.Config{
		Enabled:  cfg.Security.AuditEnabled,
		Capacity: cfg.Security.AuditCapacity,
	}, logger, audit.WithMetrics(metrics))

	ctx := context.Background()
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Disabled:         !cfg.CircuitBreaker.Enabled,
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		RecoveryTimeout:  cfg.CircuitBreaker.RecoveryTimeout.Std(),
		HalfOpenMaxCalls: cfg.CircuitBreaker.HalfOpenMaxCalls,
		OnStateChange: func(from, to resilience.State) {
			metrics.RecordBreakerTransition(ctx, from.String(), to.String())
			logger.Warn(ctx, "circuit breaker state changed",
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})

	store := cache.NewMemoryCache(cache.MemoryOptions{MaxEntries: cfg.Cache.MaxEntries})
	memo := cache.NewMemoizer(store, cache.Policy{
		Enabled: cfg.Cache.Enabled,
		TTL:     cfg.Cache.TTL.Std(),
	})

	httpClient, err := upstream.NewHTTPClient(upstream.HTTPConfig{
		BaseURL: cfg.Upstream.BaseURL,
		APIKey:  cfg.Upstream.APIKey,
		Timeout: cfg.Upstream.Timeout.Std(),
	})
	if err != nil {
		return nil, err
	}
	protected := upstream.NewProtected(httpClient, upstream.ProtectedConfig{
		Model:          cfg.Upstream.Model,
		MaxTokens:      cfg.Upstream.MaxTokens,
		Temperature:    cfg.Upstream.Temperature,
		RequestTimeout: cfg.Performance.RequestTimeout.Std(),
		RetryAttempts:  cfg.Upstream.RetryAttempts,
		RetryBaseDelay: cfg.Upstream.RetryBaseDelay.Std(),
		MaxConcurrent:  cfg.Performance.MaxConcurrent,
	}, logger,
		upstream.WithBreaker(breaker),
		upstream.WithMemoizer(memo),
		upstream.WithMetrics(metrics),
		upstream.WithTracer(tracer),
	)

	agg := health.NewAggregator(health.AggregatorConfig{})
	agg.Register(health.Active("input_validation"))
	agg.Register(health.NewLimiterChecker(limiter))
	agg.Register(health.NewAuditChecker(auditor))
	agg.Register(health.Active("error_sanitization"))
	agg.Register(health.Active("api_key_protection"))
	agg.Register(health.NewBreakerChecker("circuit_breaker", breaker))
	agg.Register(health.NewCacheChecker(store, cfg.Cache.Enabled))
	agg.Register(protected.HealthChecker())
	agg.Register(health.NewMemoryChecker(health.MemoryCheckerConfig{}))

	gw, err := gateway.New(gateway.Config{
		RoutingTimeout: cfg.Performance.RoutingTimeout.Std(),
		ToolTimeout:    cfg.Performance.ToolTimeout.Std(),
		ServerName:     cfg.Observe.ServiceName,
		ServerVersion:  version,
		CacheEnabled:   cfg.Cache.Enabled,
		BreakerEnabled: cfg.CircuitBreaker.Enabled,
	}, gateway.Deps{
		Validator:  validator,
		Sanitizer:  sanitizer,
		Limiter:    limiter,
		Auditor:    auditor,
		Upstream:   protected,
		Errors:     secret.NewErrorSanitizer(cfg.Production(), logger),
		Health:     agg,
		Cache:      store,
		Middleware: observe.NewMiddleware(tracer, metrics, logger),
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		gateway: gw,
		limiter: limiter,
		cache:   store,
		health:  agg,
		// One identity per stdio session, so per-client limits apply to
		// the connected client as a whole.
		client: ratelimit.ClientIdentifier{ClientID: "stdio-" + uuid.NewString()},
	}, nil
}

// serve runs the stdio loop alongside the background janitors and the
// optional HTTP listener. It returns when in is exhausted or ctx ends.
func (a *app) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	a.limiter.Start(ctx, a.cfg.RateLimit.CleanupInterval.Std())
	defer a.limiter.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Cache.Enabled {
		janitor := cache.NewJanitor(a.cache, a.cfg.Cache.SweepInterval.Std(), a.logger)
		g.Go(func() error { return janitor.Run(ctx) })
	}

	if a.cfg.Server.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              a.cfg.Server.HTTPAddr,
			Handler:           a.httpHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info(ctx, "http listener started", observe.Field{Key: "addr", Value: srv.Addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Std())
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// End of input ends the session and stops the other goroutines.
		defer cancel()
		a.logger.Info(ctx, "serving JSON-RPC on stdio", observe.Field{Key: "client", Value: a.client.Key()})
		return serveStdio(ctx, a.gateway, in, out, a.client, a.cfg.Security.MaxRequestSize, a.logger)
	})

	return g.Wait()
}

func (a *app) httpHandler() http.Handler {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, a.health)
	if a.cfg.Observe.Metrics.Enabled && a.cfg.Observe.Metrics.Exporter == exporters.Prometheus {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}
