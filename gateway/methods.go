package gateway

import (
	"context"
	"time"

	"github.com/jonwraymond/llmguard/health"
	"github.com/jonwraymond/llmguard/observe"
	"github.com/jonwraymond/llmguard/validate"
)

// securityComponents are the health checkers reported by security/status.
var securityComponents = []string{
	"input_validation",
	"rate_limiting",
	"audit_logging",
	"error_sanitization",
	"api_key_protection",
}

func (g *Gateway) builtinMethods() map[string]observe.HandlerFunc {
	return map[string]observe.HandlerFunc{
		validate.MethodInitialize:         g.initialize,
		validate.MethodInitialized:        g.initialized,
		validate.MethodToolsList:          g.listTools,
		validate.MethodToolsCall:          g.callTool,
		validate.MethodHealth:             g.health,
		validate.MethodPerformanceMetrics: g.performanceMetrics,
		validate.MethodSecurityStatus:     g.securityStatus,
		validate.MethodSecurityAudit:      g.securityAudit,
	}
}

func (g *Gateway) initialize(context.Context, observe.Call, map[string]any) (any, error) {
	return map[string]any{
		"protocolVersion": g.config.ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": true},
		},
		"serverInfo": map[string]any{
			"name":    g.config.ServerName,
			"version": g.config.ServerVersion,
		},
	}, nil
}

func (g *Gateway) initialized(context.Context, observe.Call, map[string]any) (any, error) {
	return map[string]any{}, nil
}

func (g *Gateway) listTools(context.Context, observe.Call, map[string]any) (any, error) {
	return map[string]any{"tools": g.toolDescriptors()}, nil
}

func (g *Gateway) health(ctx context.Context, _ observe.Call, _ map[string]any) (any, error) {
	report := g.deps.Health.Report(ctx)
	return map[string]any{
		"status":              report.Status,
		"components":          report.Components,
		"performance_metrics": g.deps.Upstream.Stats(),
		"timestamp":           report.Timestamp,
	}, nil
}

func (g *Gateway) performanceMetrics(context.Context, observe.Call, map[string]any) (any, error) {
	result := map[string]any{
		"routing_timeout_ms":      g.config.RoutingTimeout.Milliseconds(),
		"tool_timeout_ms":         g.config.ToolTimeout.Milliseconds(),
		"cache_enabled":           g.config.CacheEnabled,
		"circuit_breaker_enabled": g.config.BreakerEnabled,
		"performance_metrics":     g.deps.Upstream.Stats(),
		"circuit_breaker":         g.deps.Upstream.Breaker().Metrics(),
		"timestamp":               g.config.Now().UTC(),
	}
	if g.deps.Cache != nil {
		result["cache"] = g.deps.Cache.Stats()
	}
	return result, nil
}

func (g *Gateway) securityStatus(ctx context.Context, _ observe.Call, _ map[string]any) (any, error) {
	components := make(map[string]string, len(securityComponents))
	for _, name := range securityComponents {
		r, err := g.deps.Health.Check(ctx, name)
		if err != nil {
			components[name] = "unknown"
			continue
		}
		components[name] = componentState(r.Status)
	}

	return map[string]any{
		"security_enabled": true,
		"components":       components,
		"rate_limiting":    g.deps.Limiter.Statistics(),
		"security_audit":   g.deps.Auditor.Summary(),
		"timestamp":        g.config.Now().UTC(),
	}, nil
}

func componentState(s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return "active"
	case health.StatusDegraded:
		return "degraded"
	default:
		return "inactive"
	}
}

func (g *Gateway) securityAudit(_ context.Context, _ observe.Call, params map[string]any) (any, error) {
	limit := 0
	if v, ok := params["limit"]; ok {
		n, ok := v.(float64)
		if !ok || n < 0 || n != float64(int(n)) {
			return nil, invalidParams("limit must be a non-negative integer")
		}
		limit = int(n)
	}

	events := g.deps.Auditor.RecentPublic(limit)
	return map[string]any{
		"events":       events,
		"total_events": len(events),
		"timestamp":    g.config.Now().UTC().Format(time.RFC3339),
	}, nil
}
