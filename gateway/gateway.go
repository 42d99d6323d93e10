package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/llmguard/audit"
	"github.com/jonwraymond/llmguard/cache"
	"github.com/jonwraymond/llmguard/health"
	"github.com/jonwraymond/llmguard/jsonrpc"
	"github.com/jonwraymond/llmguard/observe"
	"github.com/jonwraymond/llmguard/ratelimit"
	"github.com/jonwraymond/llmguard/resilience"
	"github.com/jonwraymond/llmguard/sanitize"
	"github.com/jonwraymond/llmguard/secret"
	"github.com/jonwraymond/llmguard/upstream"
	"github.com/jonwraymond/llmguard/validate"
)

// Defaults applied by New.
const (
	DefaultProtocolVersion = "2024-11-05"
	DefaultServerName      = "llmguard"
	DefaultRoutingTimeout  = 100 * time.Millisecond
	DefaultToolTimeout     = 10 * time.Minute
)

// resource is the audit resource name for dispatched calls.
const resource = "gateway"

// Config configures a Gateway.
type Config struct {
	// RoutingTimeout bounds each dispatched method other than tools/call.
	// Expiry cancels the handler's context.
	// Default: 100ms
	RoutingTimeout time.Duration

	// ToolTimeout bounds one tools/call, upstream retries included.
	// Expiry cancels the in-flight upstream request.
	// Default: 10m
	ToolTimeout time.Duration

	// ServerName and ServerVersion are reported by initialize.
	ServerName    string
	ServerVersion string

	// ProtocolVersion is reported by initialize.
	// Default: 2024-11-05
	ProtocolVersion string

	// CacheEnabled and BreakerEnabled are reported by performance/metrics.
	CacheEnabled   bool
	BreakerEnabled bool

	// Files bounds the file analysis tools.
	Files FileLimits

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Deps are the components a Gateway composes. Cache, Middleware, Metrics
// and Logger are optional.
type Deps struct {
	Validator  *validate.Validator
	Sanitizer  *sanitize.Sanitizer
	Limiter    *ratelimit.Limiter
	Auditor    *audit.Auditor
	Upstream   *upstream.Protected
	Errors     *secret.ErrorSanitizer
	Health     *health.Aggregator
	Cache      cache.StatsReporter
	Middleware *observe.Middleware
	Metrics    observe.Metrics
	Logger     observe.Logger
}

func (d Deps) validate() error {
	var missing []string
	if d.Validator == nil {
		missing = append(missing, "validator")
	}
	if d.Sanitizer == nil {
		missing = append(missing, "sanitizer")
	}
	if d.Limiter == nil {
		missing = append(missing, "limiter")
	}
	if d.Auditor == nil {
		missing = append(missing, "auditor")
	}
	if d.Upstream == nil {
		missing = append(missing, "upstream")
	}
	if d.Errors == nil {
		missing = append(missing, "error sanitizer")
	}
	if d.Health == nil {
		missing = append(missing, "health aggregator")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}

// Gateway routes JSON-RPC requests through the protection layer. It is
// safe for concurrent use.
type Gateway struct {
	config      Config
	deps        Deps
	logger      observe.Logger
	metrics     observe.Metrics
	timeout     *resilience.Timeout
	toolTimeout *resilience.Timeout

	methods map[string]observe.HandlerFunc
	tools   map[string]tool
}

// New creates a Gateway.
func New(config Config, deps Deps) (*Gateway, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if config.RoutingTimeout <= 0 {
		config.RoutingTimeout = DefaultRoutingTimeout
	}
	if config.ToolTimeout <= 0 {
		config.ToolTimeout = DefaultToolTimeout
	}
	if config.ServerName == "" {
		config.ServerName = DefaultServerName
	}
	if config.ProtocolVersion == "" {
		config.ProtocolVersion = DefaultProtocolVersion
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	config.Files = config.Files.withDefaults()

	if deps.Logger == nil {
		deps.Logger = observe.NopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.NoopMetrics()
	}
	if deps.Middleware == nil {
		deps.Middleware = observe.NewMiddleware(nil, deps.Metrics, deps.Logger)
	}

	g := &Gateway{
		config:      config,
		deps:        deps,
		logger:      deps.Logger.With(observe.Field{Key: "component", Value: "gateway"}),
		metrics:     deps.Metrics,
		timeout:     resilience.NewTimeout(config.RoutingTimeout),
		toolTimeout: resilience.NewTimeout(config.ToolTimeout),
	}
	g.tools = g.builtinTools()
	g.methods = make(map[string]observe.HandlerFunc)
	for name, fn := range g.builtinMethods() {
		g.methods[name] = deps.Middleware.Wrap(fn)
	}
	return g, nil
}

// Methods returns the dispatchable method names, sorted.
func (g *Gateway) Methods() []string {
	names := make([]string, 0, len(g.methods))
	for name := range g.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Handle runs one raw request through the protection layer. It returns nil
// when the request is a notification that passed validation.
func (g *Gateway) Handle(ctx context.Context, raw []byte, client ratelimit.ClientIdentifier) *jsonrpc.Response {
	key := client.Key()
	src := audit.Source{ClientID: key, UserAgent: client.UserAgent}
	if client.IP.IsValid() {
		src.IP = client.IP.String()
	}

	result := g.deps.Validator.Validate(raw)
	if !result.Valid {
		g.deps.Auditor.ValidationFailure(ctx, src, "request_payload", strings.Join(result.Errors, "; "))
		g.deps.Limiter.RecordPatternViolation(key)
		pub := g.deps.Errors.SanitizeError(ctx, result.Err, "request_validation")
		return jsonrpc.NewError(nil, jsonrpc.ParseError, "Invalid request format", pub)
	}

	req, err := jsonrpc.DecodeValue(result.Sanitized)
	if err != nil {
		pub := g.deps.Errors.SanitizeError(ctx, err, "request_decode")
		return jsonrpc.NewError(nil, jsonrpc.ParseError, "Request processing error", pub)
	}

	toolName := result.ToolName()
	decision := g.deps.Limiter.CheckAdmission(ctx, ratelimit.Request{
		ClientKey:   key,
		Method:      req.Method,
		ToolName:    toolName,
		PayloadSize: len(raw),
	})
	g.metrics.RecordAdmission(ctx, decision.LimitType)
	if !decision.Allowed {
		g.deps.Auditor.RateLimitEvent(ctx, src, decision.LimitType, decision.CurrentCount, decision.Limit)
		if decision.LimitType == ratelimit.LimitSuspicious {
			g.deps.Auditor.SuspiciousActivity(ctx, src, "high_risk_score", decision.CurrentCount,
				map[string]string{"method": req.Method})
		}
		return jsonrpc.NewError(req.ID, jsonrpc.RateLimited, "Rate limit exceeded", map[string]any{
			"retry_after_seconds": decision.RetryAfterSeconds(),
			"limit_type":          decision.LimitType,
		})
	}

	g.deps.Auditor.DataAccess(ctx, src, req.Method, resource, true)

	resp := g.dispatch(ctx, req, toolName)
	if req.IsNotification() {
		return nil
	}
	return resp
}

// dispatch runs the method handler under its timeout.
func (g *Gateway) dispatch(ctx context.Context, req *jsonrpc.Request, toolName string) *jsonrpc.Response {
	handler, ok := g.methods[req.Method]
	if !ok {
		return jsonrpc.NewError(req.ID, jsonrpc.MethodNotFound, "Method not found: "+req.Method,
			map[string]any{"available_methods": g.Methods()})
	}

	params, err := decodeParams(req.Params)
	if err != nil {
		return jsonrpc.NewError(req.ID, jsonrpc.InvalidParams, "Invalid params", nil)
	}

	call := observe.Call{Method: req.Method, Tool: toolName, RequestID: uuid.NewString()}
	if toolName != "" {
		call.Category = ratelimit.Category(toolName)
	}

	// The handler may still be running when the timeout fires, so the
	// result travels through a buffered channel.
	out := make(chan any, 1)
	timeout := g.timeout
	if req.Method == validate.MethodToolsCall {
		timeout = g.toolTimeout
	}
	err = timeout.Execute(ctx, func(ctx context.Context) error {
		v, err := handler(ctx, call, params)
		if err != nil {
			return err
		}
		out <- v
		return nil
	})
	if err != nil {
		return g.errorResponse(ctx, req, err)
	}
	return jsonrpc.NewResult(req.ID, <-out)
}

func (g *Gateway) errorResponse(ctx context.Context, req *jsonrpc.Request, err error) *jsonrpc.Response {
	if errors.Is(err, resilience.ErrTimeout) {
		limit := g.config.RoutingTimeout
		if req.Method == validate.MethodToolsCall {
			limit = g.config.ToolTimeout
		}
		g.logger.Warn(ctx, "request timed out",
			observe.Field{Key: "method", Value: req.Method},
			observe.Field{Key: "timeout_ms", Value: limit.Milliseconds()},
		)
		return jsonrpc.NewError(req.ID, jsonrpc.InternalError, "Request timed out",
			map[string]any{"timeout_ms": limit.Milliseconds()})
	}

	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return jsonrpc.NewError(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}

	msg := "Internal error"
	if req.Method == validate.MethodToolsCall {
		msg = "Tool execution error"
	}
	return jsonrpc.NewError(req.ID, jsonrpc.InternalError, msg,
		g.deps.Errors.SanitizeError(ctx, err, req.Method))
}

func decodeParams(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// invalidParams builds the error returned for bad method or tool arguments.
func invalidParams(msg string) error {
	return &jsonrpc.Error{Code: jsonrpc.InvalidParams, Message: msg}
}
