package sanitize

import (
	"errors"
	"fmt"
)

// Sentinel errors for rejected input. A *ValidationError wraps one of these.
var (
	// ErrTooLong is returned when a string exceeds the configured maximum.
	ErrTooLong = errors.New("sanitize: input exceeds maximum length")

	// ErrDangerousPattern is returned when input matches an injection pattern.
	ErrDangerousPattern = errors.New("sanitize: input contains a dangerous pattern")

	// ErrPathTraversal is returned for paths containing "../" or "..\".
	ErrPathTraversal = errors.New("sanitize: path traversal detected")

	// ErrForbiddenPath is returned for paths under a protected system directory.
	ErrForbiddenPath = errors.New("sanitize: access to system directory denied")

	// ErrTooManyPaths is returned when a path list exceeds MaxFilePaths.
	ErrTooManyPaths = errors.New("sanitize: too many file paths")
)

// ValidationError reports which field was rejected and why.
type ValidationError struct {
	Field  string
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	msg := e.Err.Error()
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %q)", msg, e.Field)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
