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
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/order"
)

// SQLiteStore persists turns and orders in a SQLite database file
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// additionalDetails holds order fields without a dedicated column
type additionalDetails struct {
	OrderType order.Type `json:"order_type,omitempty"`
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dbPath == "" {
		dbPath = "chatbot.db"
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite store opened", zap.String("path", dbPath))
	return store, nil
}

// initSchema creates the conversations and orders tables if they don't exist
func (s *SQLiteStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			user_input TEXT NOT NULL,
			chatbot_response TEXT NOT NULL,
			agent TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			brand_preference TEXT,
			additional_details TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_session ON orders(session_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LogTurn records one handler step
func (s *SQLiteStore) LogTurn(ctx context.Context, sessionID, userInput, reply, handlerName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (session_id, timestamp, user_input, chatbot_response, agent)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, time.Now().UTC(), userInput, reply, handlerName)
	if err != nil {
		return fmt.Errorf("failed to log conversation: %w", err)
	}
	return nil
}

// SaveOrder inserts a confirmed order and returns its row ID
func (s *SQLiteStore) SaveOrder(ctx context.Context, sessionID string, record order.Record) (int64, error) {
	if err := validateOrder(record); err != nil {
		return 0, err
	}

	details, err := json.Marshal(additionalDetails{OrderType: record.Type})
	if err != nil {
		return 0, fmt.Errorf("failed to encode order details: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (session_id, title, description, product_name, quantity,
			brand_preference, additional_details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, record.Title, record.Description, record.ProductName, record.Quantity,
		record.BrandPreference, string(details), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read order id: %w", err)
	}

	s.logger.Debug("Order saved", zap.String("session_id", sessionID), zap.Int64("order_id", id))
	return id, nil
}

// OrdersBySession returns the session's orders, newest first
func (s *SQLiteStore) OrdersBySession(ctx context.Context, sessionID string) ([]Order, error) {
	return s.queryOrders(ctx, `
		SELECT id, session_id, title, description, product_name, quantity,
			brand_preference, additional_details, created_at
		FROM orders
		WHERE session_id = ?
		ORDER BY id DESC
	`, sessionID)
}

// AllOrders returns every stored order, newest first
func (s *SQLiteStore) AllOrders(ctx context.Context) ([]Order, error) {
	return s.queryOrders(ctx, `
		SELECT id, session_id, title, description, product_name, quantity,
			brand_preference, additional_details, created_at
		FROM orders
		ORDER BY id DESC
	`)
}

func (s *SQLiteStore) queryOrders(ctx context.Context, query string, args ...interface{}) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		var (
			o       Order
			brand   sql.NullString
			details sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.SessionID, &o.Title, &o.Description, &o.ProductName,
			&o.Quantity, &brand, &details, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.BrandPreference = brand.String

		if details.Valid && details.String != "" {
			var extra additionalDetails
			if err := json.Unmarshal([]byte(details.String), &extra); err != nil {
				s.logger.Warn("Ignoring malformed order details",
					zap.Int64("order_id", o.ID), zap.Error(err))
			}
			o.Type = extra.OrderType
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return orders, nil
}

// ConversationHistory returns up to limit turns for the session, newest first
func (s *SQLiteStore) ConversationHistory(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_input, chatbot_response, agent, timestamp
		FROM conversations
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, sessionID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.UserInput, &turn.Reply,
			&turn.Handler, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return turns, nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
