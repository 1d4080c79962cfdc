// Package resilience keeps Claire usable while its remote services (LLM, TTS
// and STT) misbehave.
//
// [CircuitBreaker] stops calling a service after repeated failures and probes
// it again after a cool-down. [FallbackGroup] chains instances of one
// provider kind, each behind its own breaker, and serves a call from the
// first healthy one.
//
// Not every error is the provider's fault. A reader pressing stop cancels the
// context, and an empty recording is rejected by every backend alike. Such
// errors are classified by [CircuitBreakerConfig.IsFailure]: they neither
// trip a breaker nor move a call on to the next provider.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the service while a breaker
// is open or its half-open probe budget is spent.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota
	// StateOpen rejects calls until the reset timeout has passed.
	StateOpen
	// StateHalfOpen lets a few probe calls through to test recovery.
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
	}
	return "unknown"
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values select the
// defaults.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs and state-change hooks.
	Name string

	// MaxFailures opens the breaker after this many consecutive failures.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is both the probe budget and the number of successful
	// probes needed to close again. Default: 3.
	HalfOpenMax int

	// IsFailure reports whether a non-nil error counts against the service.
	// Default: [IsProviderFailure].
	IsFailure func(error) bool

	// OnStateChange runs in its own goroutine after every transition.
	OnStateChange func(name string, from, to State)
}

// IsProviderFailure counts every error except caller cancellation.
func IsProviderFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// CircuitBreaker is a three-state breaker guarding one service.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int // consecutive, closed state only
	openedAt time.Time
	probes   int // probe calls admitted in the current half-open round
	passed   int // probe calls that succeeded in the current round
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = IsProviderFailure
	}
	return &CircuitBreaker{cfg: cfg}
}

// IsFailure applies the breaker's error classification to err.
func (cb *CircuitBreaker) IsFailure(err error) bool {
	return err != nil && cb.cfg.IsFailure(err)
}

// Execute calls fn unless the breaker rejects the call with
// [ErrCircuitOpen], and returns fn's error unchanged. Only errors classified
// as failures move the breaker towards open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.allow()
	if err != nil {
		return err
	}
	err = fn()
	cb.record(probe, err)
	return err
}

// allow admits a call and reports whether it is a half-open probe.
func (cb *CircuitBreaker) allow() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, ErrCircuitOpen
		}
		cb.probes, cb.passed = 0, 0
		cb.setLocked(StateHalfOpen)
		slog.Info("circuit breaker half-open, probing", "name", cb.cfg.Name)
	}
	if cb.state != StateHalfOpen {
		return false, nil
	}
	if cb.probes >= cb.cfg.HalfOpenMax {
		return false, ErrCircuitOpen
	}
	cb.probes++
	return true, nil
}

// record accounts for the outcome of an admitted call.
func (cb *CircuitBreaker) record(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case cb.IsFailure(err):
		if probe {
			cb.openedAt = time.Now()
			cb.setLocked(StateOpen)
			slog.Warn("circuit breaker re-opened by failed probe", "name", cb.cfg.Name)
			return
		}
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures {
			cb.openedAt = time.Now()
			cb.setLocked(StateOpen)
			slog.Warn("circuit breaker opened", "name", cb.cfg.Name, "consecutive_failures", cb.failures)
		}

	case err != nil:
		// Not the service's fault. A probe slot is handed back since the
		// call said nothing about recovery.
		if probe && cb.state == StateHalfOpen {
			cb.probes--
		}

	case probe:
		if cb.state != StateHalfOpen {
			return
		}
		cb.passed++
		if cb.passed >= cb.cfg.HalfOpenMax {
			cb.failures = 0
			cb.setLocked(StateClosed)
			slog.Info("circuit breaker closed after successful probes", "name", cb.cfg.Name)
		}

	default:
		cb.failures = 0
	}
}

// setLocked moves to state and fires the hook. cb.mu must be held.
func (cb *CircuitBreaker) setLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if hook := cb.cfg.OnStateChange; hook != nil {
		go hook(cb.cfg.Name, from, to)
	}
}

// State returns the current state. An open breaker whose reset timeout has
// passed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures, cb.probes, cb.passed = 0, 0, 0
	cb.setLocked(StateClosed)
	slog.Info("circuit breaker reset", "name", cb.cfg.Name)
}
