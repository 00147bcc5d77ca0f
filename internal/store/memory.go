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

package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/your-org/order-assistant/internal/order"
)

// MemoryStore keeps everything in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	turns  []Turn
	orders []Order
	closed bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LogTurn records one handler step
func (m *MemoryStore) LogTurn(_ context.Context, sessionID, userInput, reply, handlerName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errStoreClosed
	}
	m.turns = append(m.turns, Turn{
		ID:        int64(len(m.turns) + 1),
		SessionID: sessionID,
		UserInput: userInput,
		Reply:     reply,
		Handler:   handlerName,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// SaveOrder stores a confirmed order
func (m *MemoryStore) SaveOrder(_ context.Context, sessionID string, record order.Record) (int64, error) {
	if err := validateOrder(record); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errStoreClosed
	}
	id := int64(len(m.orders) + 1)
	m.orders = append(m.orders, Order{
		ID:        id,
		SessionID: sessionID,
		Record:    record,
		CreatedAt: time.Now().UTC(),
	})
	return id, nil
}

// OrdersBySession returns the session's orders, newest first
func (m *MemoryStore) OrdersBySession(_ context.Context, sessionID string) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Order{}
	for i := len(m.orders) - 1; i >= 0; i-- {
		if m.orders[i].SessionID == sessionID {
			result = append(result, m.orders[i])
		}
	}
	return result, nil
}

// AllOrders returns every stored order, newest first
func (m *MemoryStore) AllOrders(_ context.Context) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := slices.Clone(m.orders)
	if result == nil {
		result = []Order{}
	}
	slices.Reverse(result)
	return result, nil
}

// ConversationHistory returns up to limit turns for the session, newest first
func (m *MemoryStore) ConversationHistory(_ context.Context, sessionID string, limit int) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = normalizeLimit(limit)
	result := []Turn{}
	for i := len(m.turns) - 1; i >= 0 && len(result) < limit; i-- {
		if m.turns[i].SessionID == sessionID {
			result = append(result, m.turns[i])
		}
	}
	return result, nil
}

// Ping reports whether the store is open
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errStoreClosed
	}
	return nil
}

// Close marks the store closed; later writes fail
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
