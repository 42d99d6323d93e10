package observe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/llmguard/observe/exporters"
)

// InstrumentationName is the scope name of every tracer and meter the
// gateway creates.
const InstrumentationName = "github.com/jonwraymond/llmguard"

// Config holds all configuration for the Observer.
type Config struct {
	ServiceName string
	Version     string

	// Environment is reported as deployment.environment, e.g. "production".
	Environment string

	// SetGlobal installs the providers as the otel globals, so libraries
	// that use otel.GetTracerProvider report into the same pipeline.
	SetGlobal bool

	Tracing TracingConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// TracingConfig configures the tracing subsystem.
type TracingConfig struct {
	Enabled   bool
	Exporter  string  // otlp|stdout|none
	SamplePct float64 // 0.0-1.0
}

// MetricsConfig configures the metrics subsystem.
type MetricsConfig struct {
	Enabled  bool
	Exporter string // otlp|prometheus|stdout|none
}

// LoggingConfig configures the logging subsystem.
type LoggingConfig struct {
	Enabled bool
	Level   string // debug|info|warn|error
	Format  string // json|console
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if err := c.Tracing.validate(); err != nil {
		return err
	}
	if err := c.Metrics.validate(); err != nil {
		return err
	}
	return c.Logging.validate()
}

func (c TracingConfig) validate() error {
	if !c.Enabled {
		return nil
	}
	if !slices.Contains(ValidTracingExporters, c.Exporter) {
		return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.Exporter)
	}
	if c.SamplePct < 0 || c.SamplePct > 1 {
		return fmt.Errorf("%w, got: %f", ErrInvalidSamplePct, c.SamplePct)
	}
	return nil
}

func (c MetricsConfig) validate() error {
	if c.Enabled && !slices.Contains(ValidMetricsExporters, c.Exporter) {
		return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.Exporter)
	}
	return nil
}

func (c LoggingConfig) validate() error {
	if !c.Enabled {
		return nil
	}
	if !slices.Contains(ValidLogLevels, c.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Level)
	}
	if c.Format != "" && c.Format != FormatJSON && c.Format != FormatConsole {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Format)
	}
	return nil
}

// Observer provides access to telemetry primitives.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Shutdown must honor cancellation/deadlines.
// - Errors: Shutdown is idempotent and returns the joined provider errors.
type Observer interface {
	// Tracer returns the configured tracer.
	Tracer() trace.Tracer

	// Meter returns the configured meter.
	Meter() metric.Meter

	// Logger returns the configured logger.
	Logger() Logger

	// Shutdown flushes and stops all telemetry providers.
	Shutdown(ctx context.Context) error
}

type observer struct {
	tracer    trace.Tracer
	meter     metric.Meter
	logger    Logger
	shutdowns []func(context.Context) error

	once        sync.Once
	shutdownErr error
}

// NewObserver creates an Observer. Disabled subsystems get no-op
// implementations, so callers never check for nil.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	attrs := []resource.Option{resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	)}
	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("observe: create resource: %w", err)
	}

	obs := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(InstrumentationName),
		meter:  noop.NewMeterProvider().Meter(InstrumentationName),
		logger: NopLogger(),
	}

	if cfg.Tracing.Enabled {
		tp, err := newTracerProvider(ctx, cfg.Tracing, res)
		if err != nil {
			return nil, err
		}
		if cfg.SetGlobal {
			otel.SetTracerProvider(tp)
		}
		obs.tracer = tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(cfg.Version))
		obs.shutdowns = append(obs.shutdowns, tp.Shutdown)
	}

	if cfg.Metrics.Enabled {
		mp, err := newMeterProvider(ctx, cfg.Metrics, res)
		if err != nil {
			_ = obs.Shutdown(ctx)
			return nil, err
		}
		if cfg.SetGlobal {
			otel.SetMeterProvider(mp)
		}
		obs.meter = mp.Meter(InstrumentationName, metric.WithInstrumentationVersion(cfg.Version))
		obs.shutdowns = append(obs.shutdowns, mp.Shutdown)
	}

	if cfg.Logging.Enabled {
		logger, err := NewLogger(cfg.Logging)
		if err != nil {
			_ = obs.Shutdown(ctx)
			return nil, fmt.Errorf("observe: setup logging: %w", err)
		}
		obs.logger = logger.With(Field{Key: "service", Value: cfg.ServiceName})
	}

	return obs, nil
}

func newTracerProvider(ctx context.Context, cfg TracingConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := exporters.NewTracingExporter(ctx, cfg.Exporter)
	if err != nil {
		return nil, fmt.Errorf("observe: create trace exporter: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SamplePct))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func sampler(pct float64) sdktrace.Sampler {
	switch {
	case pct >= 1:
		return sdktrace.AlwaysSample()
	case pct <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(pct)
	}
}

func newMeterProvider(ctx context.Context, cfg MetricsConfig, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader, err := exporters.NewMetricsReader(ctx, cfg.Exporter)
	if err != nil {
		return nil, fmt.Errorf("observe: create metrics reader: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }

func (o *observer) Meter() metric.Meter { return o.meter }

func (o *observer) Logger() Logger { return o.logger }

func (o *observer) Shutdown(ctx context.Context) error {
	o.once.Do(func() {
		var errs []error
		for _, fn := range o.shutdowns {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		_ = o.logger.Sync()
		if len(errs) > 0 {
			o.shutdownErr = fmt.Errorf("observe: shutdown: %w", errors.Join(errs...))
		}
	})
	return o.shutdownErr
}
