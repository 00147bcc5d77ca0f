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

package classifier

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/order-assistant/internal/metrics"
	"github.com/your-org/order-assistant/internal/order"
	"github.com/your-org/order-assistant/internal/resilience"
)

type fakeCompleter struct {
	reply  string
	err    error
	delay  time.Duration
	calls  atomic.Int32
	prompt atomic.Value
}

func (f *fakeCompleter) Complete(ctx context.Context, _, user string) (string, error) {
	f.calls.Add(1)
	f.prompt.Store(user)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func TestRules(t *testing.T) {
	testCases := []struct {
		name        string
		description string
		expected    order.Type
	}{
		{"marathon event", "500 units for our marathon event", order.Bulk},
		{"small desk lamp", "a small desk lamp", order.Generic},
		{"empty", "", order.Generic},
		{"bulk keyword wins over generic keyword", "office desk chairs for home", order.Bulk},
		{"case insensitive", "WHOLESALE pens", order.Bulk},
		{"generic keyword", "a few notebooks", order.Generic},
		{"large number", "250 water bottles", order.Bulk},
		{"small number", "12 mugs", order.Generic},
		{"between thresholds", "75 mugs", order.Generic},
		{"threshold bulk", "100 mugs", order.Bulk},
		{"threshold generic", "50 mugs", order.Generic},
		{"no signal", "need some bottles", order.Generic},
		{"one inside another word is not a keyword", "150 phones for someone", order.Bulk},
		{"personal use", "a chair for personal use", order.Generic},
		{"conference keyword", "10 wooden desks for the new conference room.", order.Bulk},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Rules(tc.description); got != tc.expected {
				t.Errorf("Rules(%q) = %s, expected %s", tc.description, got, tc.expected)
			}
		})
	}
}

func TestClassifyWithoutBackend(t *testing.T) {
	c := New(nil, zaptest.NewLogger(t))

	if c.HasBackend() {
		t.Fatal("Expected no backend")
	}
	if got := c.Classify(context.Background(), "500 units for our marathon event", ""); got != order.Bulk {
		t.Errorf("Expected bulk, got %s", got)
	}
	if got := c.Classify(context.Background(), "a small desk lamp", "bulk"); got != order.Generic {
		t.Errorf("Expected hint to be ignored by rules, got %s", got)
	}
}

func TestClassifyUsesBackendLabel(t *testing.T) {
	testCases := []struct {
		name     string
		reply    string
		expected order.Type
	}{
		{"exact label", "generic", order.Generic},
		{"padded upper case", "  BULK\n", order.Bulk},
		{"label overrides rules", "generic", order.Generic},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeCompleter{reply: tc.reply}
			c := New(backend, zaptest.NewLogger(t))

			got := c.Classify(context.Background(), "500 units for our marathon event", "reselling")
			if got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
			if backend.calls.Load() != 1 {
				t.Errorf("Expected one backend call, got %d", backend.calls.Load())
			}
		})
	}
}

func TestClassifyFallsBackToRules(t *testing.T) {
	testCases := []struct {
		name    string
		backend *fakeCompleter
		timeout time.Duration
	}{
		{"backend error", &fakeCompleter{err: errors.New("unauthorized")}, time.Second},
		{"unusable reply", &fakeCompleter{reply: "This is a bulk order."}, time.Second},
		{"empty reply", &fakeCompleter{reply: ""}, time.Second},
		{"slow backend", &fakeCompleter{reply: "generic", delay: time.Second}, 20 * time.Millisecond},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			c := New(tc.backend, zaptest.NewLogger(t),
				WithTimeout(tc.timeout),
				WithMetrics(metrics.MustNewMetrics(reg)))

			got := c.Classify(context.Background(), "500 units for our marathon event", "")
			if got != order.Bulk {
				t.Errorf("Expected rules to decide bulk, got %s", got)
			}
			if tc.backend.calls.Load() != 1 {
				t.Errorf("Expected exactly one backend attempt, got %d", tc.backend.calls.Load())
			}
		})
	}
}

func TestClassifyOpenBreakerSkipsBackend(t *testing.T) {
	backend := &fakeCompleter{err: errors.New("connection refused")}
	config := resilience.DefaultCircuitBreakerConfig("test")
	config.MaxFailures = 2
	config.ResetTimeout = time.Hour

	c := New(backend, zaptest.NewLogger(t), WithCircuitBreaker(config))

	for i := 0; i < 4; i++ {
		if got := c.Classify(context.Background(), "a small desk lamp", ""); got != order.Generic {
			t.Fatalf("Expected generic, got %s", got)
		}
	}

	if backend.calls.Load() != 2 {
		t.Errorf("Expected breaker to stop calls after 2 failures, got %d calls", backend.calls.Load())
	}
	if c.BreakerStats().State != resilience.CircuitOpen.String() {
		t.Errorf("Expected open breaker, got %s", c.BreakerStats().State)
	}

	// A new backend starts with a closed breaker
	replacement := &fakeCompleter{reply: "bulk"}
	c.SetBackend(replacement)
	if got := c.Classify(context.Background(), "a small desk lamp", ""); got != order.Bulk {
		t.Errorf("Expected replacement backend label, got %s", got)
	}
}

func TestSetBackendNilDisablesBackend(t *testing.T) {
	backend := &fakeCompleter{reply: "bulk"}
	c := New(backend, zaptest.NewLogger(t))
	c.SetBackend(nil)

	if got := c.Classify(context.Background(), "a small desk lamp", ""); got != order.Generic {
		t.Errorf("Expected rules result, got %s", got)
	}
	if backend.calls.Load() != 0 {
		t.Errorf("Expected removed backend not to be called")
	}
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := BuildUserPrompt("10 wooden desks", "")
	if !strings.Contains(prompt, "Type of request: Not specified") {
		t.Errorf("Expected unspecified hint, got %q", prompt)
	}

	prompt = BuildUserPrompt("10 wooden desks", "I need 10 wooden desks")
	expected := "Description: 10 wooden desks\nType of request: I need 10 wooden desks\n\nClassify this order:"
	if prompt != expected {
		t.Errorf("Expected %q, got %q", expected, prompt)
	}

	backend := &fakeCompleter{reply: "generic"}
	c := New(backend, zaptest.NewLogger(t))
	c.Classify(context.Background(), "10 wooden desks", "office furniture")
	if sent, _ := backend.prompt.Load().(string); !strings.Contains(sent, "Type of request: office furniture") {
		t.Errorf("Expected hint to reach the backend, got %q", sent)
	}
}

func TestClassifierTotality(t *testing.T) {
	c := New(&fakeCompleter{reply: "maybe"}, zaptest.NewLogger(t))
	inputs := []string{"", "   ", "🙂", "0", "-5 things", "99999999999999999999999 pens", "one", "ÆØÅ"}

	for _, input := range inputs {
		got := c.Classify(context.Background(), input, "")
		if got != order.Generic && got != order.Bulk {
			t.Errorf("Classify(%q) returned %q", input, got)
		}
	}
}
