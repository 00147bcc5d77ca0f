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
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/order"
)

const redisKeyPrefix = "order-assistant:"

// RedisStore keeps turns and orders in Redis lists. Each list is pushed at
// the head, so ranges read newest first.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
}

// NewRedisStore connects to the server at url (redis://host:port/db)
func NewRedisStore(ctx context.Context, url string, logger *zap.Logger) (*RedisStore, error) {
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store := NewRedisStoreFromClient(client, logger)
	store.logger.Info("Redis store connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return store, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, logger: logger, prefix: redisKeyPrefix}
}

func (r *RedisStore) conversationKey(sessionID string) string {
	return r.prefix + "conversations:" + sessionID
}

func (r *RedisStore) sessionOrdersKey(sessionID string) string {
	return r.prefix + "orders:session:" + sessionID
}

func (r *RedisStore) allOrdersKey() string {
	return r.prefix + "orders:all"
}

func (r *RedisStore) sequenceKey(kind string) string {
	return r.prefix + "seq:" + kind
}

// LogTurn records one handler step
func (r *RedisStore) LogTurn(ctx context.Context, sessionID, userInput, reply, handlerName string) error {
	id, err := r.client.Incr(ctx, r.sequenceKey("conversations")).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate turn id: %w", err)
	}

	data, err := json.Marshal(Turn{
		ID:        id,
		SessionID: sessionID,
		UserInput: userInput,
		Reply:     reply,
		Handler:   handlerName,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	if err := r.client.LPush(ctx, r.conversationKey(sessionID), data).Err(); err != nil {
		return fmt.Errorf("failed to log conversation: %w", err)
	}
	return nil
}

// SaveOrder stores the order under the session and in the global list
func (r *RedisStore) SaveOrder(ctx context.Context, sessionID string, record order.Record) (int64, error) {
	if err := validateOrder(record); err != nil {
		return 0, err
	}

	id, err := r.client.Incr(ctx, r.sequenceKey("orders")).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate order id: %w", err)
	}

	data, err := json.Marshal(Order{
		ID:        id,
		SessionID: sessionID,
		Record:    record,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal order: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.sessionOrdersKey(sessionID), data)
		pipe.LPush(ctx, r.allOrdersKey(), data)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save order: %w", err)
	}

	r.logger.Debug("Order saved", zap.String("session_id", sessionID), zap.Int64("order_id", id))
	return id, nil
}

// OrdersBySession returns the session's orders, newest first
func (r *RedisStore) OrdersBySession(ctx context.Context, sessionID string) ([]Order, error) {
	return r.rangeOrders(ctx, r.sessionOrdersKey(sessionID))
}

// AllOrders returns every stored order, newest first
func (r *RedisStore) AllOrders(ctx context.Context) ([]Order, error) {
	return r.rangeOrders(ctx, r.allOrdersKey())
}

func (r *RedisStore) rangeOrders(ctx context.Context, key string) ([]Order, error) {
	values, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	orders := make([]Order, 0, len(values))
	for _, value := range values {
		var o Order
		if err := json.Unmarshal([]byte(value), &o); err != nil {
			r.logger.Warn("Skipping malformed order entry", zap.String("key", key), zap.Error(err))
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// ConversationHistory returns up to limit turns for the session, newest first
func (r *RedisStore) ConversationHistory(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	values, err := r.client.LRange(ctx, r.conversationKey(sessionID), 0, int64(normalizeLimit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}

	turns := make([]Turn, 0, len(values))
	for _, value := range values {
		var turn Turn
		if err := json.Unmarshal([]byte(value), &turn); err != nil {
			r.logger.Warn("Skipping malformed conversation entry", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Ping checks the server connection
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client
func (r *RedisStore) Close() error {
	return r.client.Close()
}
