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

package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/openai"
)

const (
	// DefaultMaxSessions bounds the number of live sessions
	DefaultMaxSessions = 1000
	// DefaultSessionTTL expires idle sessions
	DefaultSessionTTL = time.Hour
)

// ErrSessionNotFound is returned for unknown or expired sessions
var ErrSessionNotFound = errors.New("session not found")

// ManagerConfig holds session manager settings
type ManagerConfig struct {
	MaxSessions     int
	SessionTTL      time.Duration
	DefaultProvider openai.Provider
}

// Manager keeps one Router per session. Idle sessions expire after the TTL
// and the least recently used session is evicted when the cache is full.
type Manager struct {
	mu       sync.RWMutex
	lookupMu sync.Mutex
	sessions *expirable.LRU[string, *Router]
	provider openai.Provider
	deps     Dependencies
	logger   *zap.Logger
}

// NewManager creates a session manager
func NewManager(config ManagerConfig, deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = DefaultMaxSessions
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.DefaultProvider == "" {
		config.DefaultProvider = openai.ProviderOpenAI
	}

	m := &Manager{
		provider: config.DefaultProvider,
		deps:     deps,
		logger:   deps.Logger,
	}
	m.sessions = expirable.NewLRU[string, *Router](config.MaxSessions, func(sessionID string, _ *Router) {
		m.logger.Debug("Session evicted", zap.String("session_id", sessionID))
	}, config.SessionTTL)

	return m
}

// Create starts a new session with a generated identifier
func (m *Manager) Create() *Router {
	m.lookupMu.Lock()
	defer m.lookupMu.Unlock()
	return m.add(NewSessionID())
}

// Get returns a live session and refreshes its expiry
func (m *Manager) Get(sessionID string) (*Router, error) {
	m.lookupMu.Lock()
	defer m.lookupMu.Unlock()
	return m.get(sessionID)
}

// GetOrCreate returns the session with the given identifier, creating it
// when it does not exist
func (m *Manager) GetOrCreate(sessionID string) *Router {
	m.lookupMu.Lock()
	defer m.lookupMu.Unlock()
	if router, err := m.get(sessionID); err == nil {
		return router
	}
	return m.add(sessionID)
}

// get and add expect lookupMu to be held.
func (m *Manager) get(sessionID string) (*Router, error) {
	router, ok := m.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	m.sessions.Add(sessionID, router)
	return router, nil
}

func (m *Manager) add(sessionID string) *Router {
	m.mu.RLock()
	provider := m.provider
	m.mu.RUnlock()

	router := NewRouter(sessionID, provider, m.deps)
	m.sessions.Add(sessionID, router)
	m.deps.Metrics.SetActiveSessions(m.sessions.Len())

	m.logger.Info("Session created",
		zap.String("session_id", sessionID),
		zap.String("provider", string(provider)))
	return router
}

// Delete ends a session
func (m *Manager) Delete(sessionID string) bool {
	m.lookupMu.Lock()
	defer m.lookupMu.Unlock()
	removed := m.sessions.Remove(sessionID)
	m.deps.Metrics.SetActiveSessions(m.sessions.Len())
	return removed
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// DefaultProvider returns the provider given to new sessions
func (m *Manager) DefaultProvider() openai.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.provider
}

// SwitchProvider changes the provider for new sessions and for every live
// session
func (m *Manager) SwitchProvider(name string) error {
	provider, err := openai.ParseProvider(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.provider = provider
	m.mu.Unlock()

	for _, router := range m.sessions.Values() {
		if err := router.SwitchProvider(string(provider)); err != nil {
			return err
		}
	}

	m.logger.Info("Provider switched for all sessions",
		zap.String("provider", string(provider)),
		zap.Int("sessions", m.sessions.Len()))
	return nil
}
