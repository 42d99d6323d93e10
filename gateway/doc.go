// Package gateway composes the protection layer in front of the chat
// completion API.
//
// Every inbound JSON-RPC payload takes the same path:
//
//	validate -> admit -> audit -> dispatch (under the routing or tool timeout)
//
// Validation failures and admission denials are answered without reaching
// a handler. Dispatched calls run through an observe.Middleware, so each
// one gets a span, request metrics, and a completion log entry. Errors
// returned to callers pass through a secret.ErrorSanitizer first.
//
// The built-in methods are initialize, initialized, tools/list,
// tools/call, health, performance/metrics, security/status and
// security/audit.
package gateway
