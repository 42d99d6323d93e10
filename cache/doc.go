// Package cache memoizes upstream chat completions.
//
// Keys are derived from the completion parameters by ChatKeyer. Values
// live in a sharded in-memory MemoryCache with per-entry TTL and an
// optional entry bound. Memoizer coalesces concurrent misses for the same
// key so only one upstream call is made, and Janitor sweeps expired
// entries in the background.
package cache
