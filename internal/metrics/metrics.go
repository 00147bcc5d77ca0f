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

// Package metrics exposes Prometheus collectors for conversation activity.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "order_assistant"

// Classification sources
const (
	SourceBackend  = "backend"
	SourceFallback = "fallback"
)

// Metrics groups the collectors recorded by the router, classifier and API
type Metrics struct {
	turns           *prometheus.CounterVec
	classifications *prometheus.CounterVec
	handoffs        *prometheus.CounterVec
	resets          prometheus.Counter
	ordersSaved     *prometheus.CounterVec
	saveFailures    prometheus.Counter
	backendLatency  *prometheus.HistogramVec
	activeSessions  prometheus.Gauge
}

// MustNewMetrics constructs Metrics against reg, reusing collectors that are
// already registered under the same name. Any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		turns: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Handler steps processed, by handler name.",
		}, []string{"handler"})),
		classifications: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "classifications_total",
			Help:      "Orders classified, by label and by the path that decided the label.",
		}, []string{"label", "source"})),
		handoffs: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "handoffs_total",
			Help:      "Control transfers between handlers.",
		}, []string{"from", "to"})),
		resets: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "resets_total",
			Help:      "Conversations reset by the user.",
		})),
		ordersSaved: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "saved_total",
			Help:      "Orders persisted, by order type.",
		}, []string{"type"})),
		saveFailures: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "save_failures_total",
			Help:      "Confirmed orders the store rejected.",
		})),
		backendLatency: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "backend_duration_seconds",
			Help:      "Latency of completion-backend classification calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "status"})),
		activeSessions: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "active_sessions",
			Help:      "Sessions currently held by the session manager.",
		})),
	}
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) C {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}

// IncTurn counts one handler step
func (m *Metrics) IncTurn(handler string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(handler).Inc()
}

// IncClassification counts a classification decided by source
func (m *Metrics) IncClassification(label, source string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(label, source).Inc()
}

// IncHandoff counts a control transfer
func (m *Metrics) IncHandoff(from, to string) {
	if m == nil {
		return
	}
	m.handoffs.WithLabelValues(from, to).Inc()
}

// IncReset counts a user reset
func (m *Metrics) IncReset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}

// IncOrderSaved counts a persisted order
func (m *Metrics) IncOrderSaved(orderType string) {
	if m == nil {
		return
	}
	m.ordersSaved.WithLabelValues(orderType).Inc()
}

// IncSaveFailure counts a rejected save
func (m *Metrics) IncSaveFailure() {
	if m == nil {
		return
	}
	m.saveFailures.Inc()
}

// ObserveBackend records the latency of one completion-backend call
func (m *Metrics) ObserveBackend(provider, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.backendLatency.WithLabelValues(provider, status).Observe(duration.Seconds())
}

// SetActiveSessions reports the number of live sessions
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
