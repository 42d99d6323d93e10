// Package audit records security events in a bounded in-memory ring and
// scores per-client behavior.
//
// Every event passes through Auditor.Record, which redacts detail values
// and the user agent, adds a one-time risk adjustment derived from the
// client's history, logs the event at a severity-derived level, and
// stores it. Storage is never persisted; the oldest event is dropped once
// the ring is full.
package audit
