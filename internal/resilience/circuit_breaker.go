// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// CircuitClosed means calls pass through
	CircuitClosed CircuitState = iota
	// CircuitOpen means calls fail fast
	CircuitOpen
	// CircuitHalfOpen means a limited number of trial calls pass through
	CircuitHalfOpen
)

// String returns the string representation of the circuit state
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

// ErrCircuitBreakerOpen is returned when the circuit breaker is open
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds configuration for circuit breaker behavior
type CircuitBreakerConfig struct {
	Name                string
	MaxFailures         int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	OnStateChange       func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns default configuration for circuit breaker
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:                name,
		MaxFailures:         3,
		ResetTimeout:        30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// CircuitBreakerStats holds statistics about circuit breaker performance
type CircuitBreakerStats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	SuccessfulReqs  int       `json:"successful_requests"`
	FailedReqs      int       `json:"failed_requests"`
	LastFailureTime time.Time `json:"last_failure_time"`
	StateChanged    time.Time `json:"state_changed"`
}

// CircuitBreaker trips after consecutive failures and fails fast until the
// reset timeout elapses
type CircuitBreaker struct {
	config          CircuitBreakerConfig
	mu              sync.Mutex
	state           CircuitState
	failures        int
	halfOpenInUse   int
	successfulReqs  int
	failedReqs      int
	lastFailureTime time.Time
	stateChanged    time.Time
	now             func() time.Time
	logger          *zap.Logger
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = 1
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}

	return &CircuitBreaker{
		config:       config,
		state:        CircuitClosed,
		stateChanged: time.Now(),
		now:          time.Now,
		logger:       logger,
	}
}

// Execute runs fn unless the circuit is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if cb == nil {
		return fn(ctx)
	}
	if !cb.allow() {
		return ErrCircuitBreakerOpen
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.stateChanged) < cb.config.ResetTimeout {
			return false
		}
		cb.setState(CircuitHalfOpen)
		cb.halfOpenInUse++
		return true
	case CircuitHalfOpen:
		if cb.halfOpenInUse >= cb.config.HalfOpenMaxRequests {
			return false
		}
		cb.halfOpenInUse++
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.failedReqs++
		cb.lastFailureTime = cb.now()

		if cb.state == CircuitHalfOpen || cb.failures >= cb.config.MaxFailures {
			cb.setState(CircuitOpen)
		}
		return
	}

	cb.successfulReqs++
	cb.failures = 0
	if cb.state == CircuitHalfOpen {
		cb.setState(CircuitClosed)
	}
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(newState CircuitState) {
	oldState := cb.state
	if oldState == newState {
		return
	}
	cb.state = newState
	cb.stateChanged = cb.now()
	cb.halfOpenInUse = 0

	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", cb.config.Name),
		zap.String("from", oldState.String()),
		zap.String("to", newState.String()),
		zap.Int("failures", cb.failures))

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(oldState, newState)
	}
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns current statistics about the circuit breaker
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	if cb == nil {
		return CircuitBreakerStats{State: CircuitClosed.String()}
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		Name:            cb.config.Name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		SuccessfulReqs:  cb.successfulReqs,
		FailedReqs:      cb.failedReqs,
		LastFailureTime: cb.lastFailureTime,
		StateChanged:    cb.stateChanged,
	}
}

// Reset closes the circuit and clears the failure count
func (cb *CircuitBreaker) Reset() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(CircuitClosed)
	cb.failures = 0
}
