package resilience

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State is a circuit breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	// DefaultFailureThreshold is how many exhausted call bouts open the breaker.
	DefaultFailureThreshold = 5
	// DefaultResetTimeout is how long an open breaker blocks before trialing.
	DefaultResetTimeout = 60 * time.Second

	// halfOpenSuccessTarget is how many consecutive trial successes close a
	// half-open breaker.
	halfOpenSuccessTarget = 2
)

// BreakerConfig configures a Breaker. Zero fields fall back to defaults.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	Clock            clockwork.Clock
}

// Status is a point-in-time view of a breaker, served by the operator surface.
type Status struct {
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
}

// Breaker gates calls to one upstream. It is a pure in-memory state machine:
// no timers run; the open-to-half-open transition happens lazily on the next
// Allow call once the reset timeout has elapsed.
//
// Each upstream kind owns its own Breaker so an outage in one source never
// degrades the others. Safe for concurrent use.
type Breaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	clock            clockwork.Clock

	mu                sync.Mutex
	state             State
	failureCount      int
	halfOpenSuccesses int
	lastFailureTime   time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Breaker{
		failureThreshold: cfg.FailureThreshold,
		resetTimeout:     cfg.ResetTimeout,
		clock:            cfg.Clock,
		state:            StateClosed,
	}
}

// Allow reports whether a real call may be attempted. While open, it starts
// returning true again once the reset timeout has elapsed since the last
// failure, moving the breaker to half-open so the next calls run as trials.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.clock.Since(b.lastFailureTime) > b.resetTimeout {
			b.state = StateHalfOpen
			b.halfOpenSuccesses = 0
			return true
		}
		return false
	}
	return true
}

// RecordSuccess feeds a successful call outcome into the state machine.
// Successes decay the failure count so isolated blips never accumulate into
// a trip; two consecutive successes close a half-open breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if b.failureCount > 0 {
			b.failureCount--
		}
	case StateHalfOpen:
		if b.failureCount > 0 {
			b.failureCount--
		}
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= halfOpenSuccessTarget {
			b.state = StateClosed
			b.failureCount = 0
			b.halfOpenSuccesses = 0
		}
	}
}

// RecordFailure feeds a failed call outcome into the state machine. Crossing
// the failure threshold opens the breaker; any failure during a half-open
// trial reopens it immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = b.clock.Now()

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.failureThreshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.halfOpenSuccesses = 0
	}
}

// Status returns the current state for diagnostics.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Status{
		State:           b.state,
		FailureCount:    b.failureCount,
		LastFailureTime: b.lastFailureTime,
	}
}

// Reset forces the breaker closed and zeroes its counters. Used by the
// operator reset endpoint for manual recovery.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenSuccesses = 0
	b.lastFailureTime = time.Time{}
}
