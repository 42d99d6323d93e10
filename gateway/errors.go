package gateway

import "errors"

var (
	// ErrMissingDependency is returned by New when a required component is nil.
	ErrMissingDependency = errors.New("gateway: missing dependency")

	// ErrUnknownTool is returned when tools/call names a tool with no handler.
	ErrUnknownTool = errors.New("gateway: unknown tool")

	// ErrFileTooLarge is returned when an input file exceeds its size limit.
	ErrFileTooLarge = errors.New("gateway: file too large")

	// ErrNoFiles is returned when a file analysis matches nothing.
	ErrNoFiles = errors.New("gateway: no files to analyze")
)
