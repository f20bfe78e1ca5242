// Package circuit guards the FSM tool-call loop from hammering a failing
// LLM provider or a consistently failing actor expansion.
package circuit

import (
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	// Closed means the circuit is healthy and calls pass through.
	Closed State = iota
	// Open means the circuit is tripped and calls are rejected.
	Open
	// HalfOpen means the circuit is testing recovery with a single call.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a Breaker.
type Config struct {
	// ConsecutiveFailureThreshold trips the breaker after this many
	// consecutive FSM step failures.
	ConsecutiveFailureThreshold int

	// SameErrorThreshold trips the breaker after the same error repeats
	// this many times in a row.
	SameErrorThreshold int

	// RecoveryTimeout is how long the breaker stays open before allowing
	// a single probe call through (half-open).
	RecoveryTimeout time.Duration
}

// Breaker wraps a FSM step with a trip-on-repeated-failure policy. A
// session holds one Breaker and calls RecordSuccess/RecordError after
// every processor.Step invocation.
type Breaker struct {
	mu     sync.Mutex
	config Config

	state        State
	consecutive  int
	sameErrCount int
	lastErr      error
	openedAt     time.Time
}

// New creates a Breaker with the given config, filling in defaults for
// zero fields.
func New(config Config) *Breaker {
	if config.ConsecutiveFailureThreshold <= 0 {
		config.ConsecutiveFailureThreshold = 3
	}
	if config.SameErrorThreshold <= 0 {
		config.SameErrorThreshold = 3
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 2 * time.Minute
	}
	return &Breaker{config: config, state: Closed}
}

// Allow reports whether a call may proceed, transitioning Open->HalfOpen
// once RecoveryTimeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.config.RecoveryTimeout {
			b.state = HalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess clears failure counters and closes a half-open circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive = 0
	b.sameErrCount = 0
	b.lastErr = nil
	if b.state == HalfOpen {
		b.state = Closed
	}
}

// RecordError records a failure, tripping the circuit open if the
// consecutive-failure or same-error threshold is reached.
func (b *Breaker) RecordError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive++
	if b.state == HalfOpen {
		b.trip()
		return
	}

	if b.lastErr != nil && err != nil && b.lastErr.Error() == err.Error() {
		b.sameErrCount++
	} else {
		b.sameErrCount = 1
	}
	b.lastErr = err

	if b.consecutive >= b.config.ConsecutiveFailureThreshold ||
		b.sameErrCount >= b.config.SameErrorThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = time.Now()
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the circuit back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutive = 0
	b.sameErrCount = 0
	b.lastErr = nil
}
