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

// Package health reports readiness of the order assistant and its dependencies
package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/openai"
)

const (
	// StatusHealthy represents healthy status
	StatusHealthy = "healthy"
	// StatusUnhealthy represents unhealthy status
	StatusUnhealthy = "unhealthy"
	// StatusDegraded represents degraded status
	StatusDegraded = "degraded"
	// DefaultTimeout is the default timeout for health checks
	DefaultTimeout = 5 * time.Second
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Status    string                 `json:"status"`
	Latency   time.Duration          `json:"latency"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Response represents the complete health check response
type Response struct {
	Status       string                 `json:"status"`
	Service      string                 `json:"service"`
	Version      string                 `json:"version"`
	Environment  string                 `json:"environment"`
	Uptime       time.Duration          `json:"uptime"`
	Dependencies map[string]CheckResult `json:"dependencies"`
	Metadata     map[string]interface{} `json:"metadata"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Checker interface for health checks
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckerFunc is a function adapter for the Checker interface
type CheckerFunc func(ctx context.Context) CheckResult

// Check implements the Checker interface
func (f CheckerFunc) Check(ctx context.Context) CheckResult {
	return f(ctx)
}

// Manager manages health checks for a service
type Manager struct {
	mu          sync.RWMutex
	serviceName string
	version     string
	environment string
	startTime   time.Time
	checkers    map[string]Checker
	timeout     time.Duration
	logger      *zap.Logger
}

// NewManager creates a new health check manager
func NewManager(serviceName, version, environment string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if environment == "" {
		environment = "unknown"
	}
	return &Manager{
		serviceName: serviceName,
		version:     version,
		environment: environment,
		startTime:   time.Now(),
		checkers:    make(map[string]Checker),
		timeout:     DefaultTimeout,
		logger:      logger,
	}
}

// SetTimeout sets the timeout for health checks
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
}

// AddChecker adds a health checker
func (m *Manager) AddChecker(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

// Check runs every registered checker. The overall status is the worst
// dependency status.
func (m *Manager) Check(ctx context.Context) Response {
	m.mu.RLock()
	timeout := m.timeout
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]Checker, len(m.checkers))
	for name, checker := range m.checkers {
		checkers[name] = checker
	}
	m.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dependencies := make(map[string]CheckResult, len(names))
	overallStatus := StatusHealthy

	for _, name := range names {
		start := time.Now()
		result := checkers[name].Check(ctx)
		result.Latency = time.Since(start)
		result.Timestamp = time.Now()
		dependencies[name] = result

		switch result.Status {
		case StatusUnhealthy:
			overallStatus = StatusUnhealthy
		case StatusDegraded:
			if overallStatus != StatusUnhealthy {
				overallStatus = StatusDegraded
			}
		}
	}

	if overallStatus != StatusHealthy {
		m.logger.Warn("Health check not healthy", zap.String("status", overallStatus))
	}

	return Response{
		Status:       overallStatus,
		Service:      m.serviceName,
		Version:      m.version,
		Environment:  m.environment,
		Uptime:       time.Since(m.startTime),
		Dependencies: dependencies,
		Metadata:     systemMetadata(),
		Timestamp:    time.Now(),
	}
}

// Handler returns a Gin handler for the health endpoint. Degraded still
// answers 200; unhealthy answers 503.
func (m *Manager) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result := m.Check(c.Request.Context())

		statusCode := http.StatusOK
		if result.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, result)
	}
}

func systemMetadata() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return map[string]interface{}{
		"go_version":   runtime.Version(),
		"goroutines":   runtime.NumGoroutine(),
		"memory_alloc": memStats.Alloc,
		"gc_runs":      memStats.NumGC,
		"hostname":     hostname,
		"process_id":   os.Getpid(),
	}
}

// Pinger is implemented by storage gateways
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker reports the storage backend as unhealthy when it cannot be
// reached. Conversation turns and orders depend on it.
func StoreChecker(storeType string, store Pinger) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		if err := store.Ping(ctx); err != nil {
			return CheckResult{
				Status:   StatusUnhealthy,
				Error:    fmt.Sprintf("store ping failed: %v", err),
				Metadata: map[string]interface{}{"type": storeType},
			}
		}
		return CheckResult{
			Status:   StatusHealthy,
			Metadata: map[string]interface{}{"type": storeType},
		}
	})
}

// ProviderChecker reports the default classification backend. A provider
// without credentials is degraded since classification falls back to rules.
func ProviderChecker(registry *openai.Registry, current func() openai.Provider) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		info := registry.Info(current())
		metadata := map[string]interface{}{
			"provider": info.Provider,
			"model":    info.Model,
		}
		if !info.APIKeyConfigured {
			return CheckResult{
				Status:   StatusDegraded,
				Error:    "no API key configured; using keyword classification",
				Metadata: metadata,
			}
		}
		return CheckResult{Status: StatusHealthy, Metadata: metadata}
	})
}

// SessionsChecker exposes the number of live sessions
func SessionsChecker(count func() int, capacity int) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		active := count()
		status := StatusHealthy
		if capacity > 0 && active >= capacity {
			status = StatusDegraded
		}
		return CheckResult{
			Status: status,
			Metadata: map[string]interface{}{
				"active":   active,
				"capacity": capacity,
			},
		}
	})
}
