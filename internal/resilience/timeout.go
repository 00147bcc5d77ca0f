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

// Package resilience keeps calls to the completion backend bounded: every call
// runs under a deadline and behind a circuit breaker, and failures surface as
// typed ServiceErrors that callers can map onto HTTP responses.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single completion-backend call
	DefaultTimeout = 10 * time.Second
	// MaxTimeout caps caller-supplied timeouts
	MaxTimeout = 30 * time.Second
)

// TimeoutFunc is a function that can be executed with a timeout
type TimeoutFunc func(ctx context.Context) error

// WithTimeout runs fn under a deadline. When the deadline passes first the
// call is abandoned and a timeout ServiceError is returned; fn keeps its
// context and is expected to observe cancellation.
func WithTimeout(ctx context.Context, timeout time.Duration, logger *zap.Logger, fn TimeoutFunc) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		logger.Warn("Timeout capped at maximum",
			zap.Duration("requested_timeout", timeout),
			zap.Duration("max_timeout", MaxTimeout))
		timeout = MaxTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Debug("Operation completed with error",
				zap.Error(err),
				zap.Duration("timeout", timeout))
		}
		return err
	case <-timeoutCtx.Done():
		logger.Warn("Operation timed out",
			zap.Duration("timeout", timeout),
			zap.Error(timeoutCtx.Err()))
		return NewTimeoutError("Operation timed out", timeoutCtx.Err())
	}
}
