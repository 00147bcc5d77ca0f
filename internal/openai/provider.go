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

// Package openai talks to OpenAI-compatible chat-completion endpoints. Each
// supported provider is reached through the same wire protocol with its own
// base URL, model and key.
package openai

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Provider names a completion backend
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGoogle Provider = "google"
	ProviderGroq   Provider = "groq"
)

const (
	DefaultOpenAIModel = "gpt-3.5-turbo"
	DefaultGoogleModel = "gemini-pro"
	DefaultGroqModel   = "llama3-8b-8192"

	GoogleBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	GroqBaseURL   = "https://api.groq.com/openai/v1"
)

// ParseProvider normalizes a provider name
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case ProviderOpenAI, ProviderGoogle, ProviderGroq:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider %q", name)
	}
}

// Settings holds the connection details for one provider
type Settings struct {
	Provider   Provider
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// DefaultSettings returns the model and endpoint used when none is configured
func DefaultSettings(p Provider) Settings {
	switch p {
	case ProviderGoogle:
		return Settings{Provider: p, Model: DefaultGoogleModel, BaseURL: GoogleBaseURL}
	case ProviderGroq:
		return Settings{Provider: p, Model: DefaultGroqModel, BaseURL: GroqBaseURL}
	default:
		return Settings{Provider: ProviderOpenAI, Model: DefaultOpenAIModel}
	}
}

// ProviderInfo describes the backend a session is using
type ProviderInfo struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	Available        bool   `json:"available"`
	APIKeyConfigured bool   `json:"api_key_configured"`
}

// Registry builds clients for the configured providers
type Registry struct {
	settings map[Provider]Settings
	logger   *zap.Logger
}

// NewRegistry creates a registry. Missing models and base URLs are filled
// from the provider defaults.
func NewRegistry(settings []Settings, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		settings: make(map[Provider]Settings, len(settings)),
		logger:   logger,
	}
	for _, s := range settings {
		defaults := DefaultSettings(s.Provider)
		if s.Model == "" {
			s.Model = defaults.Model
		}
		if s.BaseURL == "" {
			s.BaseURL = defaults.BaseURL
		}
		r.settings[s.Provider] = s
	}
	return r
}

// Settings returns the resolved settings for a provider
func (r *Registry) Settings(p Provider) Settings {
	if s, ok := r.settings[p]; ok {
		return s
	}
	return DefaultSettings(p)
}

// Providers lists the known providers
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderGoogle, ProviderGroq}
}

// Client builds a completion client for p. It returns ErrMissingAPIKey when
// the provider has no credentials.
func (r *Registry) Client(p Provider) (*Client, error) {
	return NewClient(r.Settings(p), r.logger)
}

// Info reports model and credential status for p
func (r *Registry) Info(p Provider) ProviderInfo {
	s := r.Settings(p)
	configured := strings.TrimSpace(s.APIKey) != ""
	return ProviderInfo{
		Provider:         string(p),
		Model:            s.Model,
		Available:        configured,
		APIKeyConfigured: configured,
	}
}
