// Package upstream calls the chat-completion API.
//
// HTTPClient speaks the wire protocol. Protected wraps any Client with the
// gateway's protections, in order: response memoization, circuit breaker,
// bounded concurrency, retry with exponential backoff and jitter, and a
// per-attempt timeout bound to the caller's context so an abandoned
// request cancels its in-flight HTTP call.
package upstream
