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

package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// ClassificationTemperature keeps label answers stable
	ClassificationTemperature = 0.1
	// ClassificationMaxTokens is enough for a one-word label
	ClassificationMaxTokens = 10
)

// ErrMissingAPIKey is returned when a client is requested for a provider
// without credentials
var ErrMissingAPIKey = errors.New("API key is required")

// Client issues single-shot chat completions against one provider
type Client struct {
	client   *openai.Client
	logger   *zap.Logger
	provider Provider
	model    string
}

// NewClient creates a completion client for the given provider settings. No
// network call is made; availability is decided by the presence of a key.
func NewClient(settings Settings, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(settings.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", settings.Provider, ErrMissingAPIKey)
	}

	config := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		config.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	}
	if settings.HTTPClient != nil {
		config.HTTPClient = settings.HTTPClient
	}

	client := &Client{
		client:   openai.NewClientWithConfig(config),
		logger:   logger,
		provider: settings.Provider,
		model:    settings.Model,
	}

	client.logger.Info("Completion client initialized",
		zap.String("provider", string(settings.Provider)),
		zap.String("model", settings.Model),
		zap.String("base_url", config.BaseURL),
	)

	return client, nil
}

// Provider returns the provider this client talks to
func (c *Client) Provider() Provider {
	return c.provider
}

// Model returns the model used for completions
func (c *Client) Model() string {
	return c.model
}

// Complete sends one system and one user message and returns the content of
// the first choice. The call is attempted once.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   ClassificationMaxTokens,
		Temperature: ClassificationTemperature,
	}

	c.logger.Debug("Creating chat completion",
		zap.String("provider", string(c.provider)),
		zap.String("model", c.model),
		zap.Int("max_tokens", req.MaxTokens),
	)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", c.handleAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from %s", c.provider)
	}

	c.logger.Debug("Chat completion successful",
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// handleAPIError adds provider and status context to API failures
func (c *Client) handleAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: invalid API key or unauthorized access: %w", c.provider, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: rate limited: %w", c.provider, err)
		default:
			return fmt.Errorf("%s API error (status %d): %s", c.provider, apiErr.HTTPStatusCode, apiErr.Message)
		}
	}

	return fmt.Errorf("%s client error: %w", c.provider, err)
}
