package health

import "errors"

var (
	// ErrCheckTimeout indicates a check did not finish before the deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates no checker is registered under a name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrComponentDown indicates a component reported itself unavailable.
	ErrComponentDown = errors.New("health: component unavailable")
)
