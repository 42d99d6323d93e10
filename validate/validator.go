// Package validate checks inbound JSON-RPC envelopes before any other
// component sees them.
//
// Validation runs as a fixed pipeline and stops at the first failure:
// size, JSON syntax, protocol version, per-method structure, and finally
// sanitization of every string in the payload. A failed validation never
// exposes partially sanitized data.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"slices"
	"strings"

	"github.com/jonwraymond/llmguard/jsonrpc"
	"github.com/jonwraymond/llmguard/sanitize"
)

// DefaultMaxRequestSize is the default payload limit (1 MiB).
const DefaultMaxRequestSize = 1024 * 1024

// Method names understood by the gateway.
const (
	MethodInitialize         = "initialize"
	MethodInitialized        = "initialized"
	MethodToolsList          = "tools/list"
	MethodToolsCall          = "tools/call"
	MethodHealth             = "health"
	MethodPerformanceMetrics = "performance/metrics"
	MethodSecurityStatus     = "security/status"
	MethodSecurityAudit      = "security/audit"
)

// AllowedTools is the default tool allow-list for tools/call.
var AllowedTools = []string{
	"enhanced_query_deepseek",
	"analyze_files",
	"query_deepseek",
	"check_deepseek_status",
	"handoff_to_deepseek",
	"youtu_agent_analyze_files",
}

// Sentinel errors, one per pipeline stage.
var (
	ErrTooLarge       = errors.New("validate: request too large")
	ErrMalformed      = errors.New("validate: invalid JSON format")
	ErrVersion        = errors.New("validate: invalid JSON-RPC version")
	ErrUnknownMethod  = errors.New("validate: unknown method")
	ErrMissingField   = errors.New("validate: missing required field")
	ErrDisallowedTool = errors.New("validate: tool not allowed")
	ErrSanitization   = errors.New("validate: input sanitization failed")
	ErrContentType    = errors.New("validate: unsupported content type")
)

// Result is the outcome of Validate. Sanitized is nil unless Valid.
type Result struct {
	Valid     bool
	Errors    []string
	Sanitized map[string]any

	// Err is the first failure, for callers that prefer errors.Is.
	Err error
}

// Method returns the sanitized method name, or "" when invalid.
func (r Result) Method() string {
	if r.Sanitized == nil {
		return ""
	}
	m, _ := r.Sanitized["method"].(string)
	return m
}

// ToolName returns params.name for tools/call requests.
func (r Result) ToolName() string {
	if r.Method() != MethodToolsCall {
		return ""
	}
	params, _ := r.Sanitized["params"].(map[string]any)
	name, _ := params["name"].(string)
	return name
}

// Config configures a Validator.
type Config struct {
	// MaxRequestSize is the payload limit in bytes.
	// Default: 1 MiB
	MaxRequestSize int

	// AllowedTools overrides the default tool allow-list.
	AllowedTools []string
}

type methodRule func(v *Validator, params map[string]any, hasParams bool) error

// Validator validates raw request payloads. It is safe for concurrent use.
type Validator struct {
	config    Config
	sanitizer *sanitize.Sanitizer
	rules     map[string]methodRule
}

// New creates a Validator backed by sanitizer.
func New(config Config, sanitizer *sanitize.Sanitizer) *Validator {
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = DefaultMaxRequestSize
	}
	if len(config.AllowedTools) == 0 {
		config.AllowedTools = AllowedTools
	}
	if sanitizer == nil {
		sanitizer = sanitize.New(sanitize.Config{})
	}

	v := &Validator{
		config:    config,
		sanitizer: sanitizer,
	}
	v.rules = map[string]methodRule{
		MethodInitialize:         requireParams,
		MethodInitialized:        allow,
		MethodToolsList:          allow,
		MethodToolsCall:          validateToolCall,
		MethodHealth:             allow,
		MethodPerformanceMetrics: allow,
		MethodSecurityStatus:     allow,
		MethodSecurityAudit:      allow,
	}
	return v
}

// Validate runs the validation pipeline over raw.
func (v *Validator) Validate(raw []byte) Result {
	if len(raw) > v.config.MaxRequestSize {
		return fail(ErrTooLarge, fmt.Sprintf("Request too large: %d bytes (max %d)", len(raw), v.config.MaxRequestSize))
	}

	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fail(ErrMalformed, "Invalid JSON format")
	}

	if version, _ := envelope["jsonrpc"].(string); version != jsonrpc.Version {
		return fail(ErrVersion, "Invalid JSON-RPC version, expected 2.0")
	}

	method, _ := envelope["method"].(string)
	if method == "" {
		return fail(ErrMissingField, "Missing required field: method")
	}

	rule, ok := v.rules[method]
	if !ok {
		return fail(ErrUnknownMethod, "Unknown method: "+method)
	}

	rawParams, hasParams := envelope["params"]
	params, _ := rawParams.(map[string]any)
	if err := rule(v, params, hasParams && rawParams != nil); err != nil {
		return failErr(err)
	}

	clean, err := v.sanitizer.SanitizeValue(envelope)
	if err != nil {
		return fail(ErrSanitization, "Input sanitization failed: "+err.Error())
	}

	return Result{Valid: true, Sanitized: clean.(map[string]any)}
}

// ValidateContentType requires an application/json media type.
func ValidateContentType(contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.EqualFold(mediaType, "application/json") {
		return fmt.Errorf("%w: %q", ErrContentType, contentType)
	}
	return nil
}

func allow(*Validator, map[string]any, bool) error {
	return nil
}

func requireParams(_ *Validator, _ map[string]any, hasParams bool) error {
	if !hasParams {
		return reject(ErrMissingField, "Missing required field: params")
	}
	return nil
}

func validateToolCall(v *Validator, params map[string]any, hasParams bool) error {
	if !hasParams || params == nil {
		return reject(ErrMissingField, "Missing required field: params")
	}

	name, _ := params["name"].(string)
	if name == "" {
		return reject(ErrMissingField, "Missing required field: params.name")
	}
	if !slices.Contains(v.config.AllowedTools, name) {
		return reject(ErrDisallowedTool, "Unknown or disallowed tool: "+name)
	}

	args, _ := params["arguments"].(map[string]any)
	if files, ok := args["files"].([]any); ok {
		paths := make([]string, 0, len(files))
		for _, f := range files {
			s, ok := f.(string)
			if !ok {
				return reject(ErrSanitization, "Input sanitization failed: files must be strings")
			}
			paths = append(paths, s)
		}
		if _, err := v.sanitizer.ValidateFilePaths(paths); err != nil {
			return reject(ErrSanitization, "Input sanitization failed: "+err.Error())
		}
	}
	return nil
}

// ruleError carries a caller-facing message alongside its sentinel.
type ruleError struct {
	err error
	msg string
}

func (e *ruleError) Error() string { return e.msg }
func (e *ruleError) Unwrap() error { return e.err }

func reject(err error, msg string) error {
	return &ruleError{err: err, msg: msg}
}

func fail(err error, msg string) Result {
	return Result{Errors: []string{msg}, Err: reject(err, msg)}
}

func failErr(err error) Result {
	return Result{Errors: []string{err.Error()}, Err: err}
}
