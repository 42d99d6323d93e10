package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow to the downstream API.
	StateClosed State = iota
	// StateOpen means calls fail fast without reaching the downstream API.
	StateOpen
	// StateHalfOpen means a bounded number of trial calls are allowed.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Disabled turns the breaker into a pass-through: every call is
	// allowed and failures are not recorded.
	Disabled bool

	// FailureThreshold is the number of failures that opens the circuit.
	// Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open after the last
	// failure before trial calls are allowed.
	// Default: 60 seconds
	RecoveryTimeout time.Duration

	// HalfOpenMaxCalls is the number of trial calls allowed while half-open.
	// Default: 3
	HalfOpenMaxCalls int

	// OnStateChange is called, with the breaker lock held, whenever the
	// state changes. It must not call back into the breaker.
	OnStateChange func(from, to State)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// CircuitBreaker guards calls to a failing dependency.
//
// The check-and-increment of the half-open admission counter happens under
// the same lock as the state transition, so at most HalfOpenMaxCalls trial
// calls are admitted per half-open period.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	halfOpenCalls int
	trips         int64
	rejected      int64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 3
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Allow reports whether a call may proceed, returning ErrCircuitOpen when
// it may not. A nil return while half-open consumes one trial slot.
func (cb *CircuitBreaker) Allow() error {
	if cb.config.Disabled {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		cb.rejected++
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			cb.rejected++
			return ErrCircuitOpen
		}
		cb.halfOpenCalls++
	}
	return nil
}

// RecordSuccess resets the failure count and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb.config.Disabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.halfOpenCalls = 0
	cb.setStateLocked(StateClosed)
}

// RecordFailure counts a failure. Reaching the threshold, or any failure
// while half-open, opens the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	if cb.config.Disabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.config.Now()

	state := cb.currentStateLocked()
	if state == StateHalfOpen || (state == StateClosed && cb.failures >= cb.config.FailureThreshold) {
		cb.trips++
		cb.setStateLocked(StateOpen)
	}
}

// Execute runs op if the breaker allows it and records the outcome. A
// failure after ctx is done belongs to the caller, not the dependency: it
// is not counted and any half-open trial slot it held is returned.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	err := op(ctx)
	switch {
	case err == nil:
		cb.RecordSuccess()
	case ctx.Err() != nil:
		cb.releaseTrial()
	default:
		cb.RecordFailure()
	}
	return err
}

func (cb *CircuitBreaker) releaseTrial() {
	if cb.config.Disabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.currentStateLocked() == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	if cb.config.Disabled {
		return StateClosed
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Enabled reports whether the breaker is active.
func (cb *CircuitBreaker) Enabled() bool {
	return !cb.config.Disabled
}

// Reset closes the circuit and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.halfOpenCalls = 0
	cb.setStateLocked(StateClosed)
}

// currentStateLocked moves an open circuit to half-open once the recovery
// timeout has elapsed since the last failure.
func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && cb.config.Now().Sub(cb.lastFailure) > cb.config.RecoveryTimeout {
		cb.setStateLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(state State) {
	if cb.state == state {
		return
	}
	from := cb.state
	cb.state = state
	if state == StateHalfOpen {
		cb.halfOpenCalls = 0
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, state)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.state
	if !cb.config.Disabled {
		state = cb.currentStateLocked()
	}

	return CircuitBreakerMetrics{
		Enabled:       !cb.config.Disabled,
		State:         state,
		Failures:      cb.failures,
		HalfOpenCalls: cb.halfOpenCalls,
		LastFailure:   cb.lastFailure,
		Trips:         cb.trips,
		Rejected:      cb.rejected,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	Enabled       bool
	State         State
	Failures      int
	HalfOpenCalls int
	LastFailure   time.Time
	Trips         int64
	Rejected      int64
}
