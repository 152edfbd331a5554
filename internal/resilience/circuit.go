// Package resilience provides circuit breaker and retry patterns for external service calls.
package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state — requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means too many failures — requests are rejected immediately.
	CircuitOpen
	// CircuitHalfOpen allows probe requests to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerOpenError is returned when a call is rejected because the circuit
// is open. RetryAfter is how long until the breaker will allow a probe.
type BreakerOpenError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s (retry after %s)", e.Service, e.RetryAfter.Round(time.Millisecond))
}

// CircuitBreakerConfig controls circuit breaker behavior for one service.
type CircuitBreakerConfig struct {
	// Name identifies the guarded service in errors and logs.
	Name string

	// FailureThreshold is the number of consecutive failures before opening
	// the circuit. Default: 5.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes required in
	// half-open state before closing the circuit. Default: 2.
	SuccessThreshold int

	// Timeout is how long the circuit stays open before transitioning to
	// half-open. Checked lazily on the next attempt, not via a timer.
	// Default: 30s.
	Timeout time.Duration

	// ShouldTrip optionally overrides the default check. If nil, every
	// non-nil error counts toward the failure threshold.
	ShouldTrip func(err error) bool

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitCounters holds lifetime totals for observability.
type CircuitCounters struct {
	TotalCalls     int64 `json:"total_calls"`
	TotalFailures  int64 `json:"total_failures"`
	TotalSuccesses int64 `json:"total_successes"`
	TimesOpened    int64 `json:"times_opened"`
}

// CircuitBreaker implements the circuit breaker pattern for a single service.
// All counter mutation happens under a single mutex because breakers are
// shared across concurrently researched subjects.
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	mu    sync.Mutex
	state CircuitState

	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
	counters             CircuitCounters

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		cfg:     cfg,
		state:   CircuitClosed,
		nowFunc: time.Now,
	}
}

// Execute runs fn through the circuit breaker. If the circuit is open it
// returns a *BreakerOpenError without invoking fn. Otherwise it invokes fn,
// records the outcome, and returns fn's error unchanged — the breaker never
// swallows the underlying error.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allowRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.recordResult(err)
	return err
}

// ExecuteVal is like Execute but preserves a return value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allowRequest(); err != nil {
		return zero, err
	}

	val, err := fn(ctx)
	cb.recordResult(err)
	return val, err
}

// CanAttempt reports whether a call would currently be allowed. An open
// breaker whose timeout has elapsed transitions to half-open here.
func (cb *CircuitBreaker) CanAttempt() bool {
	return cb.allowRequest() == nil
}

// State returns the current circuit state, applying the lazy open→half-open
// timeout check without committing it.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.Timeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// RecordSuccess registers a successful call made outside Execute.
// Always resets the consecutive-failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.recordResult(nil)
}

// RecordFailure registers a failed call made outside Execute.
// Always resets the consecutive-success counter.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.recordResult(err)
}

// Reset forces the circuit back to closed state. Useful for testing or
// manual recovery.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	old := cb.state
	cb.state = CircuitClosed
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	if old != CircuitClosed && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(old, CircuitClosed)
	}
}

// Counters returns a snapshot of the lifetime counters.
func (cb *CircuitBreaker) Counters() CircuitCounters {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counters
}

// ConsecutiveFailures returns the current consecutive failure count and state.
func (cb *CircuitBreaker) ConsecutiveFailures() (int, CircuitState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFailures, cb.state
}

func (cb *CircuitBreaker) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		elapsed := cb.nowFunc().Sub(cb.openedAt)
		if elapsed >= cb.cfg.Timeout {
			cb.transition(CircuitHalfOpen)
			return nil // Allow probe request.
		}
		return &BreakerOpenError{
			Service:    cb.cfg.Name,
			RetryAfter: cb.cfg.Timeout - elapsed,
		}
	default:
		// Closed and half-open both allow the request.
		return nil
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counters.TotalCalls++

	shouldTrip := cb.cfg.ShouldTrip
	if shouldTrip == nil {
		shouldTrip = func(e error) bool { return e != nil }
	}

	if err == nil || !shouldTrip(err) {
		cb.counters.TotalSuccesses++
		cb.consecutiveFailures = 0
		cb.consecutiveSuccesses++

		if cb.state == CircuitHalfOpen && cb.consecutiveSuccesses >= cb.cfg.SuccessThreshold {
			cb.transition(CircuitClosed)
		}
		return
	}

	cb.counters.TotalFailures++
	cb.consecutiveSuccesses = 0
	cb.consecutiveFailures++

	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure in half-open reopens the circuit.
		cb.transition(CircuitOpen)
	}
}

// transition mutates state under the caller's lock. Entering the open state
// always sets openedAt.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	switch to {
	case CircuitOpen:
		cb.openedAt = cb.nowFunc()
		cb.counters.TimesOpened++
	case CircuitClosed:
		cb.consecutiveFailures = 0
		cb.consecutiveSuccesses = 0
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
