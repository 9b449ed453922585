package lookupd

import (
	"context"
	"sync"
	"time"
)

// BreakerState is the circuit breaker position.
type BreakerState int

const (
	// BreakerClosed passes calls through; consecutive failures are counted.
	BreakerClosed BreakerState = iota
	// BreakerOpen fails fast without touching the index.
	BreakerOpen
	// BreakerHalfOpen lets a trial call check whether the index recovered.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker guards the search index calls. When Redis stops answering,
// every read would otherwise eat a full connection timeout before falling
// back to the primary; an open breaker turns that into an immediate
// ErrBackendUnavailable, and the read router falls back without the wait.
//
// The breaker opens after failureLimit consecutive failures, half-opens
// once cooldown has passed, and closes again on the first successful trial call.
type CircuitBreaker struct {
	mu           sync.Mutex
	failureLimit int
	cooldown     time.Duration
	consecutive  int
	openedAt     time.Time
	state        BreakerState
	onTransition func(from, to BreakerState)
}

// NewCircuitBreaker creates a closed breaker. The index uses
// DefaultBreakerMaxFailures and DefaultBreakerResetTimeout.
func NewCircuitBreaker(failureLimit int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureLimit: failureLimit,
		cooldown:     cooldown,
	}
}

// OnStateChange registers a transition callback, used for logging state
// flips. The callback runs with the breaker lock held; keep it cheap.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to BreakerState)) *CircuitBreaker {
	cb.onTransition = fn
	return cb
}

// Execute runs fn unless the breaker is open, in which case it fails fast
// with ErrBackendUnavailable.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.allow() {
		return WithContext(ErrBackendUnavailable, map[string]interface{}{
			"reason": "circuit breaker is open",
			"state":  cb.State().String(),
		})
	}
	err := fn()
	cb.observe(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen {
		if time.Since(cb.openedAt) > cb.cooldown {
			cb.transition(BreakerHalfOpen)
			return true
		}
		return false
	}
	return true
}

func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.consecutive++
		cb.openedAt = time.Now()
		if cb.consecutive >= cb.failureLimit && cb.state != BreakerOpen {
			cb.transition(BreakerOpen)
		}
		return
	}

	cb.consecutive = 0
	if cb.state == BreakerHalfOpen {
		cb.transition(BreakerClosed)
	}
}

func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	cb.state = to
	if cb.onTransition != nil {
		cb.onTransition(from, to)
	}
}

// State returns the current breaker position.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed, clearing the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutive = 0
	cb.transition(BreakerClosed)
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutive
}
