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

// Package store persists conversation turns and confirmed orders. Three
// backends implement Gateway: sqlite for a single process, redis for shared
// deployments and an in-memory store for tests and demos.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/order"
)

// DefaultHistoryLimit is used when a caller asks for a non-positive limit
const DefaultHistoryLimit = 50

// Backend types
const (
	TypeSQLite = "sqlite"
	TypeRedis  = "redis"
	TypeMemory = "memory"
)

// ErrInvalidOrder is returned when an order violates record invariants
var ErrInvalidOrder = errors.New("invalid order")

var errStoreClosed = errors.New("store is closed")

// Turn is one logged handler step
type Turn struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	UserInput string    `json:"user_input"`
	Reply     string    `json:"chatbot_response"`
	Handler   string    `json:"agent"`
	Timestamp time.Time `json:"timestamp"`
}

// Order is a persisted order record
type Order struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	order.Record
	CreatedAt time.Time `json:"created_at"`
}

// Gateway stores conversation logs and orders. Implementations are safe for
// concurrent use. Listings are returned newest first.
type Gateway interface {
	LogTurn(ctx context.Context, sessionID, userInput, reply, handlerName string) error
	SaveOrder(ctx context.Context, sessionID string, record order.Record) (int64, error)
	OrdersBySession(ctx context.Context, sessionID string) ([]Order, error)
	ConversationHistory(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	AllOrders(ctx context.Context) ([]Order, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend
type Config struct {
	Type     string
	DBPath   string
	RedisURL string
}

// Open creates the configured gateway
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(cfg.Type) {
	case TypeSQLite, "":
		return NewSQLiteStore(cfg.DBPath, logger)
	case TypeRedis:
		return NewRedisStore(ctx, cfg.RedisURL, logger)
	case TypeMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// validateOrder enforces the invariants every backend relies on
func validateOrder(record order.Record) error {
	if record.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, record.Quantity)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
