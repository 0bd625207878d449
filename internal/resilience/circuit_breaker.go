// ABOUTME: Circuit breaker pattern for isolating failing reputation providers
// ABOUTME: Windowed failure counting, lazy half-open recovery, and transition notifications

package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Default circuit breaker configuration values.
const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 1
	DefaultResetTimeout     = 30 * time.Second
	DefaultFailureWindow    = 60 * time.Second
)

// Circuit breaker states.
type State int

const (
	// StateClosed allows requests through normally.
	StateClosed State = iota

	// StateOpen rejects all requests immediately.
	StateOpen

	// StateHalfOpen allows a single trial request at a time.
	StateHalfOpen
)

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

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StateChangeFunc is notified on every breaker transition. It fires
// exactly once per transition, synchronously with the transition, and
// must not call back into the breaker.
type StateChangeFunc func(name string, from, to State)

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker for logging/metrics.
	Name string

	// FailureThreshold is the number of failures inside FailureWindow
	// that opens the circuit. Zero uses DefaultFailureThreshold.
	FailureThreshold int

	// SuccessThreshold is the number of half-open successes required
	// to close the circuit. Zero uses DefaultSuccessThreshold.
	SuccessThreshold int

	// ResetTimeout is how long the circuit stays open before a trial
	// call is allowed. Zero uses DefaultResetTimeout.
	ResetTimeout time.Duration

	// FailureWindow is the rolling window failures are counted in.
	// Zero uses DefaultFailureWindow.
	FailureWindow time.Duration

	// OnStateChange is invoked on every transition (optional).
	OnStateChange StateChangeFunc

	// Clock overrides the time source for tests. Nil uses time.Now.
	Clock func() time.Time
}

// Statistics holds circuit breaker counters.
type Statistics struct {
	State         State
	TotalRequests int64
	Successes     int64
	Failures      int64
	Rejections    int64
	WindowedFails int
	OpenedAt      time.Time
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	mu     sync.Mutex
	config CircuitBreakerConfig
	now    func() time.Time

	state            State
	failureTimes     []time.Time
	openedAt         time.Time
	halfOpenInFlight bool
	halfOpenSuccess  int

	// Statistics counters.
	totalRequests atomic.Int64
	successes     atomic.Int64
	failures      atomic.Int64
	rejections    atomic.Int64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults.
	if config.FailureThreshold == 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = DefaultSuccessThreshold
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = DefaultResetTimeout
	}
	if config.FailureWindow == 0 {
		config.FailureWindow = DefaultFailureWindow
	}

	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &CircuitBreaker{
		config: config,
		now:    now,
		state:  StateClosed,
	}
}

// Execute runs the function through the circuit breaker. When the
// circuit is open and the reset timeout has not elapsed, it returns
// ErrCircuitOpen without invoking fn and without causing a transition.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	cb.totalRequests.Add(1)

	if !cb.allowRequest() {
		cb.rejections.Add(1)
		return ErrCircuitOpen
	}

	// Recorded in a defer so a panicking fn still releases the
	// half-open trial slot; the panic counts as a failure.
	success := false
	defer func() { cb.recordResult(success) }()

	err := fn(ctx)
	success = err == nil
	return err
}

// State returns the current state, applying the lazy open to half-open
// transition when the reset timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpen()
	return cb.state
}

// Name returns the breaker's configured name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Statistics returns current circuit breaker statistics.
func (cb *CircuitBreaker) Statistics() Statistics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Statistics{
		State:         cb.state,
		TotalRequests: cb.totalRequests.Load(),
		Successes:     cb.successes.Load(),
		Failures:      cb.failures.Load(),
		Rejections:    cb.rejections.Load(),
		WindowedFails: len(cb.pruneLocked(cb.now())),
		OpenedAt:      cb.openedAt,
	}
}

// Reset manually resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transition(StateClosed)
	cb.failureTimes = nil
	cb.openedAt = time.Time{}
	cb.halfOpenInFlight = false
	cb.halfOpenSuccess = 0
}

// allowRequest checks if a request should be allowed, reserving the
// half-open trial slot when applicable.
func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpen()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		return false

	case StateHalfOpen:
		// A single trial call at a time.
		if cb.halfOpenInFlight {
			return false
		}
		cb.halfOpenInFlight = true
		return true

	default:
		return false
	}
}

// recordResult records the result of an executed operation.
func (cb *CircuitBreaker) recordResult(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()

	if success {
		cb.successes.Add(1)

		if cb.state == StateHalfOpen {
			cb.halfOpenInFlight = false
			cb.halfOpenSuccess++
			if cb.halfOpenSuccess >= cb.config.SuccessThreshold {
				cb.transition(StateClosed)
				cb.failureTimes = nil
				cb.halfOpenSuccess = 0
			}
		}
		return
	}

	cb.failures.Add(1)

	switch cb.state {
	case StateClosed:
		cb.failureTimes = append(cb.pruneLocked(now), now)
		if len(cb.failureTimes) >= cb.config.FailureThreshold {
			cb.openedAt = now
			cb.transition(StateOpen)
		}

	case StateHalfOpen:
		// Any failure in half-open reopens the circuit.
		cb.halfOpenInFlight = false
		cb.halfOpenSuccess = 0
		cb.openedAt = now
		cb.transition(StateOpen)
	}
}

// maybeHalfOpen applies the lazy open to half-open transition.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) maybeHalfOpen() {
	if cb.state != StateOpen {
		return
	}
	if cb.now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		cb.halfOpenInFlight = false
		cb.halfOpenSuccess = 0
		cb.transition(StateHalfOpen)
	}
}

// transition moves to a new state and fires the notification.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// pruneLocked drops failure timestamps older than the rolling window.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) pruneLocked(now time.Time) []time.Time {
	cutoff := now.Add(-cb.config.FailureWindow)
	kept := cb.failureTimes[:0]
	for _, ts := range cb.failureTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	cb.failureTimes = kept
	return kept
}
