package classifier

import (
	"sync"
	"time"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
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

// CircuitBreaker opens after threshold failures inside window and lets a
// single probe through once cooldown has passed.
type CircuitBreaker struct {
	mu sync.Mutex

	state     CircuitState
	failures  []time.Time
	openedAt  time.Time
	probing   bool
	lastError string

	threshold int
	window    time.Duration
	cooldown  time.Duration
	now       func() time.Time
}

func NewCircuitBreaker(threshold int, window, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &CircuitBreaker{
		state:     CircuitClosed,
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state = CircuitHalfOpen
		cb.probing = true
		return true
	default:
		// half-open: only the probe is in flight
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
}

func (cb *CircuitBreaker) RecordFailure(errMsg string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.lastError = errMsg
	cb.probing = false

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		cb.openedAt = now
		return
	}

	cutoff := now.Add(-cb.window)
	kept := cb.failures[:0]
	for _, t := range cb.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cb.failures = append(kept, now)

	if len(cb.failures) >= cb.threshold {
		cb.state = CircuitOpen
		cb.openedAt = now
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = cb.failures[:0]
	cb.probing = false
	cb.lastError = ""
}

func (cb *CircuitBreaker) LastError() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastError
}

// CooldownRemaining is zero unless the breaker is open.
func (cb *CircuitBreaker) CooldownRemaining() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return 0
	}
	return max(cb.cooldown-cb.now().Sub(cb.openedAt), 0)
}
