// Package jsonrpc models the JSON-RPC 2.0 envelope spoken by the gateway.
//
// Requests arrive as raw bytes, are validated and sanitized by package
// validate, and are then decoded into a Request. Every reply, success or
// failure, is a Response carrying the request's id.
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the only accepted protocol version.
const Version = "2.0"

// Sentinel errors returned by Decode.
var (
	ErrInvalidJSON    = errors.New("jsonrpc: invalid JSON")
	ErrInvalidVersion = errors.New("jsonrpc: version must be 2.0")
	ErrMissingMethod  = errors.New("jsonrpc: missing method field")
)

// JSON-RPC 2.0 error codes, plus the implementation-defined code used for
// admission denials.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
	RateLimited    = -32000
)

// Request is an inbound call. A request without an id is a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the caller expects no reply.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// BindParams decodes the request params into v.
func (r *Request) BindParams(v any) error {
	if len(r.Params) == 0 {
		return fmt.Errorf("jsonrpc: params are required")
	}
	if err := json.Unmarshal(r.Params, v); err != nil {
		return fmt.Errorf("jsonrpc: invalid params: %w", err)
	}
	return nil
}

// Response is the reply to a Request. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewResult builds a success response.
func NewResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, ID: normalizeID(id), Result: result}
}

// NewError builds an error response.
func NewError(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      normalizeID(id),
		Error:   &Error{Code: code, Message: message, Data: data},
	}
}

// Decode parses data into a Request and checks the envelope fields.
func Decode(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if req.JSONRPC != Version {
		return nil, ErrInvalidVersion
	}
	if req.Method == "" {
		return nil, ErrMissingMethod
	}
	return &req, nil
}

// DecodeValue converts an already-decoded JSON value into a Request.
func DecodeValue(v any) (*Request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return Decode(data)
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
