// Package config loads llmguard configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment overrides. The upstream API key may be a secret reference
// (for example "secretref:vault:secret/llm#api_key") that Resolve replaces
// with the value held by the named provider.
//
// Durations in YAML use Go syntax ("100ms", "30s", "5m").
package config
