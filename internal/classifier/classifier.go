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

// Package classifier labels an order description as generic or bulk. A
// completion backend is consulted first when one is configured; keyword and
// quantity rules decide whenever it is absent, slow, failing or vague.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/metrics"
	"github.com/your-org/order-assistant/internal/openai"
	"github.com/your-org/order-assistant/internal/order"
	"github.com/your-org/order-assistant/internal/resilience"
)

const (
	// BulkThreshold is the smallest quantity the rules treat as bulk
	BulkThreshold = 100
	// GenericCeiling is the largest quantity the rules treat as generic
	GenericCeiling = 50
)

// SystemPrompt instructs the backend to answer with a single label
const SystemPrompt = `You are an order classification expert. Analyze the order request and classify it as either "generic" or "bulk".

Classification rules:
- "generic": Single items, small quantities (1-50), personal use, specific products
- "bulk": Large quantities (100+), multiple items, reselling, wholesale, events

Respond with only "generic" or "bulk".`

var (
	bulkKeywords = []string{
		"bulk", "wholesale", "reselling", "business", "company", "office",
		"event", "conference", "marathon", "onboarding", "employee", "team",
		"hundred", "thousand", "500", "1000", "large quantity", "mass order",
	}
	genericKeywords = []string{
		"personal", "home", "individual", "single", "few", "small",
		"desk", "lamp", "furniture", "electronics",
	}
)

// Completer is a text-completion backend
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Classifier decides the order type for a description
type Classifier struct {
	mu       sync.RWMutex
	backend  Completer
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	breakerC resilience.CircuitBreakerConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Option configures a Classifier
type Option func(*Classifier)

// WithTimeout bounds each backend call
func WithTimeout(timeout time.Duration) Option {
	return func(c *Classifier) {
		c.timeout = timeout
	}
}

// WithCircuitBreaker overrides the breaker settings used for the backend
func WithCircuitBreaker(config resilience.CircuitBreakerConfig) Option {
	return func(c *Classifier) {
		c.breakerC = config
	}
}

// WithMetrics records classifications and backend latency
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Classifier) {
		c.metrics = m
	}
}

// New creates a classifier. backend may be nil, in which case only the rules
// are used.
func New(backend Completer, logger *zap.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Classifier{
		timeout:  resilience.DefaultTimeout,
		breakerC: resilience.DefaultCircuitBreakerConfig("completion-backend"),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.SetBackend(backend)
	return c
}

// SetBackend replaces the completion backend. A nil backend disables the
// backend path. The circuit breaker starts closed for the new backend.
func (c *Classifier) SetBackend(backend Completer) {
	var breaker *resilience.CircuitBreaker
	if backend != nil {
		breaker = resilience.NewCircuitBreaker(c.breakerC, c.logger)
	}

	c.mu.Lock()
	c.backend = backend
	c.breaker = breaker
	c.mu.Unlock()

	c.logger.Debug("Classifier backend set", zap.String("backend", backendName(backend)))
}

// HasBackend reports whether a completion backend is configured
func (c *Classifier) HasBackend() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backend != nil
}

// BreakerStats reports the backend circuit breaker state
func (c *Classifier) BreakerStats() resilience.CircuitBreakerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.breaker.Stats()
}

// Classify returns the order type for description. It never fails: any
// backend problem falls through to Rules.
func (c *Classifier) Classify(ctx context.Context, description, hint string) order.Type {
	c.mu.RLock()
	backend, breaker := c.backend, c.breaker
	c.mu.RUnlock()

	if backend != nil {
		if label, ok := c.ask(ctx, backend, breaker, description, hint); ok {
			c.metrics.IncClassification(string(label), metrics.SourceBackend)
			return label
		}
	}

	label := Rules(description)
	c.metrics.IncClassification(string(label), metrics.SourceFallback)
	return label
}

func (c *Classifier) ask(ctx context.Context, backend Completer, breaker *resilience.CircuitBreaker, description, hint string) (order.Type, bool) {
	provider := backendName(backend)
	start := time.Now()

	var reply string
	err := breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, c.timeout, c.logger, func(ctx context.Context) error {
			r, err := backend.Complete(ctx, SystemPrompt, BuildUserPrompt(description, hint))
			if err != nil {
				return err
			}
			reply = r
			return nil
		})
	})
	if err != nil {
		c.metrics.ObserveBackend(provider, "error", time.Since(start))
		c.logger.Warn("Backend classification failed, using rules",
			zap.String("provider", provider),
			zap.Error(err))
		return "", false
	}

	label, ok := order.ParseType(reply)
	if !ok {
		c.metrics.ObserveBackend(provider, "invalid", time.Since(start))
		c.logger.Debug("Backend returned an unusable label, using rules",
			zap.String("provider", provider),
			zap.String("reply", reply))
		return "", false
	}

	c.metrics.ObserveBackend(provider, "ok", time.Since(start))
	return label, true
}

// BuildUserPrompt formats the description and routing hint for the backend
func BuildUserPrompt(description, hint string) string {
	if strings.TrimSpace(hint) == "" {
		hint = "Not specified"
	}
	return fmt.Sprintf("Description: %s\nType of request: %s\n\nClassify this order:", description, hint)
}

// Rules classifies with fixed priority: bulk keywords, generic keywords, the
// first integer in the description, then generic.
func Rules(description string) order.Type {
	lower := strings.ToLower(description)

	for _, keyword := range bulkKeywords {
		if strings.Contains(lower, keyword) {
			return order.Bulk
		}
	}
	for _, keyword := range genericKeywords {
		if strings.Contains(lower, keyword) {
			return order.Generic
		}
	}

	if n, ok := order.FirstInteger(description); ok {
		if n >= BulkThreshold {
			return order.Bulk
		}
		if n <= GenericCeiling {
			return order.Generic
		}
	}

	return order.Generic
}

func backendName(backend Completer) string {
	switch b := backend.(type) {
	case nil:
		return "none"
	case interface{ Provider() openai.Provider }:
		return string(b.Provider())
	default:
		return fmt.Sprintf("%T", backend)
	}
}
