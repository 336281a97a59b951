// Package circuitbreaker stops calling a protocol adapter after repeated failures
// and lets a trial request through once the reset delay has passed.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrOpen is returned by Allow while the breaker rejects calls
var ErrOpen = errors.New("circuit breaker open")

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, calls are rejected
	StateHalfOpen              // Trial calls allowed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker counts consecutive failures of one upstream
type CircuitBreaker struct {
	name string

	// Consecutive failures that open the circuit
	failureThreshold int

	// Duration before a trial call is allowed
	resetDelay time.Duration

	// Trial successes required to close again
	successThreshold int

	mu           sync.Mutex
	state        State
	failures     int
	successCount int
	lastTrip     time.Time
	lastErr      error

	now            func() time.Time
	onStateChange  func(name string, from, to State)
	onTripCallback func(name string, err error)
}

// New creates a breaker for the named upstream
func New(name string, failureThreshold int, resetDelay time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetDelay <= 0 {
		resetDelay = time.Minute
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetDelay:       resetDelay,
		successThreshold: 1,
		state:            StateClosed,
		now:              time.Now,
	}
}

// WithSuccessThreshold sets the number of trial successes needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	if threshold > 0 {
		cb.successThreshold = threshold
	}
	return cb
}

// WithClock replaces the time source
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	if now != nil {
		cb.now = now
	}
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(name string, err error)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// WithStateChange registers a hook run synchronously on every transition
func (cb *CircuitBreaker) WithStateChange(hook func(name string, from, to State)) *CircuitBreaker {
	cb.onStateChange = hook
	return cb
}

// Name returns the upstream name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Allow reports whether a call may proceed. An open breaker moves to half-open
// once the reset delay has elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastTrip) < cb.resetDelay {
			return ErrOpen
		}
		cb.transition(StateHalfOpen)
		cb.successCount = 0
		logrus.WithField("breaker", cb.name).Info("Circuit breaker half-open: testing upstream recovery")
	}
	return nil
}

// RecordSuccess clears the failure count and closes a half-open breaker
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transition(StateClosed)
			cb.successCount = 0
			logrus.WithField("breaker", cb.name).Info("Circuit breaker closed: upstream has recovered")
		}
	}
}

// RecordFailure counts a failure. A half-open breaker trips immediately.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastErr = err
	if cb.state == StateHalfOpen || (cb.state == StateClosed && cb.failures >= cb.failureThreshold) {
		cb.trip(err)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// LastError returns the most recent recorded failure
func (cb *CircuitBreaker) LastError() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastErr
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
	cb.successCount = 0
	logrus.WithField("breaker", cb.name).Info("Circuit breaker manually reset to closed state")
}

// trip must be called with mu held
func (cb *CircuitBreaker) trip(err error) {
	cb.transition(StateOpen)
	cb.lastTrip = cb.now()
	logrus.WithFields(logrus.Fields{
		"breaker":  cb.name,
		"failures": cb.failures,
	}).WithError(err).Warn("Circuit breaker tripped")

	if cb.onTripCallback != nil {
		go cb.onTripCallback(cb.name, err)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if from != to && cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}
