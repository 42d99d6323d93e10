// Package observe provides the gateway's telemetry: a zap-backed structured
// logger, OpenTelemetry metrics and tracing, and a middleware that wraps
// JSON-RPC method handlers with all three.
//
// The gateway speaks JSON-RPC over stdout, so every sink configured here
// writes to stderr or to an exporter, never to stdout.
package observe
