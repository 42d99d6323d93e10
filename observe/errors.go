package observe

import (
	"errors"

	"github.com/jonwraymond/llmguard/observe/exporters"
)

var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSamplePct       = errors.New("observe: sample percentage must be between 0.0 and 1.0")
	ErrInvalidTracingExporter = errors.New("observe: unknown tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: unknown log level")
	ErrInvalidLogFormat       = errors.New("observe: unknown log format")
)

// Accepted configuration values. The empty string selects the default.
var (
	ValidTracingExporters = []string{exporters.OTLP, exporters.Stdout, exporters.None, ""}
	ValidMetricsExporters = []string{exporters.OTLP, exporters.Prometheus, exporters.Stdout, exporters.None, ""}
	ValidLogLevels        = []string{"debug", "info", "warn", "error", ""}
)

// RedactedFields are log field keys whose values are replaced with
// "[REDACTED]" before they reach the encoder.
var RedactedFields = []string{
	"input",
	"inputs",
	"password",
	"secret",
	"token",
	"api_key",
	"apiKey",
	"credential",
}
