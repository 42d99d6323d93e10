// Package ratelimit implements layered admission control for the gateway.
//
// CheckAdmission runs four checks in a fixed order and returns the first
// denial:
//
//  1. Global: a token bucket shared by every client.
//  2. Per-client: a 60-second sliding window of admitted requests.
//  3. Per-tool: a leaky bucket per tool category.
//  4. Anomaly: a decaying risk score built from burst, oversize,
//     failed-auth and pattern-violation counts.
//
// Only a request that passes every check is appended to its client's
// window. All state is in memory and owned by the Limiter; a janitor
// evicts clients idle for longer than an hour.
package ratelimit
