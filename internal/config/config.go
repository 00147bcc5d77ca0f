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

// Package config loads the order assistant configuration from YAML, .env and
// environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/openai"
	"github.com/your-org/order-assistant/internal/store"
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// EnvPrefix prefixes automatic environment overrides, e.g. ORDER_ASSISTANT_STORAGE_TYPE
const EnvPrefix = "ORDER_ASSISTANT"

// Config represents the complete application configuration
type Config struct {
	LLM     LLMConfig      `mapstructure:"llm"`
	OpenAI  ProviderConfig `mapstructure:"openai"`
	Google  ProviderConfig `mapstructure:"google"`
	Groq    ProviderConfig `mapstructure:"groq"`
	Storage StorageConfig  `mapstructure:"storage"`
	Session SessionConfig  `mapstructure:"session"`
	History HistoryConfig  `mapstructure:"history"`
	Server  ServerConfig   `mapstructure:"server"`
	Logging LoggingConfig  `mapstructure:"logging"`
}

// LLMConfig selects the classification backend
type LLMConfig struct {
	DefaultProvider string        `mapstructure:"default_provider"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// ProviderConfig holds credentials for one completion provider
type ProviderConfig struct {
	APIKey  string `mapstructure:"apikey"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Type     string `mapstructure:"type"`
	DBPath   string `mapstructure:"db_path"`
	RedisURL string `mapstructure:"redis_url"`
}

// SessionConfig bounds live conversations
type SessionConfig struct {
	MaxSessions int           `mapstructure:"max_sessions"`
	TTL         time.Duration `mapstructure:"ttl"`
}

// HistoryConfig caps conversation history reads
type HistoryConfig struct {
	Limit int `mapstructure:"limit"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	DotEnvPath       string
	ValidateRequired bool
}

// Load loads configuration from file, .env and environment variables.
// Environment variables take precedence over config file values.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		DotEnvPath:       ".env",
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	if err := loadDotEnv(opts.DotEnvPath); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	found, err := setConfigFile(v, opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if found {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.normalize()

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// loadDotEnv populates the process environment from a .env file. Existing
// variables win and a missing file is ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.default_provider", string(openai.ProviderOpenAI))
	v.SetDefault("llm.timeout", 10*time.Second)

	v.SetDefault("openai.model", openai.DefaultOpenAIModel)
	v.SetDefault("google.model", openai.DefaultGoogleModel)
	v.SetDefault("groq.model", openai.DefaultGroqModel)

	v.SetDefault("storage.type", store.TypeSQLite)
	v.SetDefault("storage.db_path", "./orders.db")
	v.SetDefault("storage.redis_url", "redis://localhost:6379/0")

	v.SetDefault("session.max_sessions", 1000)
	v.SetDefault("session.ttl", time.Hour)

	v.SetDefault("history.limit", store.DefaultHistoryLimit)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile picks the configuration file. An explicit path (argument or
// CONFIG_PATH) must exist; the default locations are optional.
func setConfigFile(v *viper.Viper, configPath string) (bool, error) {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return false, fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return true, nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return false, fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return true, nil
	}

	for _, path := range []string{"./configs/config.yaml", "./config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			return true, nil
		}
	}
	return false, nil
}

// setEnvironmentMappings maps the conventional variable names onto config keys
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"OPENAI_API_KEY":       "openai.apikey",
		"DEFAULT_MODEL":        "openai.model",
		"GOOGLE_AI_API_KEY":    "google.apikey",
		"GOOGLE_MODEL":         "google.model",
		"GROQ_API_KEY":         "groq.apikey",
		"GROQ_MODEL":           "groq.model",
		"DEFAULT_LLM_PROVIDER": "llm.default_provider",
		"DATABASE_PATH":        "storage.db_path",
		"REDIS_URL":            "storage.redis_url",
		"LOG_LEVEL":            "logging.level",
		"LOG_FORMAT":           "logging.format",
		"LOG_OUTPUT":           "logging.output",
		"PORT":                 "server.port",
		"ENVIRONMENT":          "server.environment",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

func (c *Config) normalize() {
	c.LLM.DefaultProvider = strings.ToLower(strings.TrimSpace(c.LLM.DefaultProvider))
	c.Storage.Type = strings.ToLower(strings.TrimSpace(c.Storage.Type))
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
}

// validateConfig collects every invalid field before failing
func validateConfig(config *Config) error {
	var errs []ValidationError

	if _, err := openai.ParseProvider(config.LLM.DefaultProvider); err != nil {
		errs = append(errs, ValidationError{
			Field:   "llm.default_provider",
			Message: fmt.Sprintf("provider must be one of: %s", strings.Join(providerNames(), ", ")),
		})
	}

	if config.LLM.Timeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "llm.timeout",
			Message: "timeout must be greater than 0",
		})
	}

	validStorageTypes := []string{store.TypeSQLite, store.TypeRedis, store.TypeMemory}
	if !slices.Contains(validStorageTypes, config.Storage.Type) {
		errs = append(errs, ValidationError{
			Field:   "storage.type",
			Message: fmt.Sprintf("storage type must be one of: %s", strings.Join(validStorageTypes, ", ")),
		})
	}

	switch config.Storage.Type {
	case store.TypeSQLite:
		if config.Storage.DBPath == "" {
			errs = append(errs, ValidationError{
				Field:   "storage.db_path",
				Message: "database path is required. Set via config file or DATABASE_PATH environment variable",
			})
		} else if err := validateDirectoryExists(filepath.Dir(config.Storage.DBPath)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "storage.db_path",
				Message: fmt.Sprintf("database directory does not exist: %s", filepath.Dir(config.Storage.DBPath)),
			})
		}
	case store.TypeRedis:
		if config.Storage.RedisURL == "" {
			errs = append(errs, ValidationError{
				Field:   "storage.redis_url",
				Message: "redis URL is required. Set via config file or REDIS_URL environment variable",
			})
		}
	}

	if config.Session.MaxSessions <= 0 {
		errs = append(errs, ValidationError{
			Field:   "session.max_sessions",
			Message: "max_sessions must be greater than 0",
		})
	}

	if config.Session.TTL <= 0 {
		errs = append(errs, ValidationError{
			Field:   "session.ttl",
			Message: "ttl must be greater than 0",
		})
	}

	if config.History.Limit <= 0 {
		errs = append(errs, ValidationError{
			Field:   "history.limit",
			Message: "limit must be greater than 0",
		})
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, config.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, config.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if len(errs) > 0 {
		var errorMessages []string
		for _, err := range errs {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("%w:\n%s", ErrInvalidConfigValue, strings.Join(errorMessages, "\n"))
	}

	return nil
}

func providerNames() []string {
	var names []string
	for _, p := range openai.Providers() {
		names = append(names, string(p))
	}
	return names
}

// DefaultProvider returns the configured default completion provider
func (c *Config) DefaultProvider() openai.Provider {
	p, err := openai.ParseProvider(c.LLM.DefaultProvider)
	if err != nil {
		return openai.ProviderOpenAI
	}
	return p
}

// ProviderSettings returns client settings for every known provider
func (c *Config) ProviderSettings() []openai.Settings {
	settings := []openai.Settings{
		{Provider: openai.ProviderOpenAI, APIKey: c.OpenAI.APIKey, Model: c.OpenAI.Model, BaseURL: c.OpenAI.BaseURL},
		{Provider: openai.ProviderGoogle, APIKey: c.Google.APIKey, Model: c.Google.Model, BaseURL: c.Google.BaseURL},
		{Provider: openai.ProviderGroq, APIKey: c.Groq.APIKey, Model: c.Groq.Model, BaseURL: c.Groq.BaseURL},
	}
	return settings
}

// StoreConfig returns the persistence settings in store form
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Type:     c.Storage.Type,
		DBPath:   c.Storage.DBPath,
		RedisURL: c.Storage.RedisURL,
	}
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	for _, provider := range []*ProviderConfig{&masked.OpenAI, &masked.Google, &masked.Groq} {
		if provider.APIKey != "" {
			provider.APIKey = maskValue(provider.APIKey)
		}
	}
	if masked.Storage.RedisURL != "" {
		masked.Storage.RedisURL = maskRedisPassword(masked.Storage.RedisURL)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// maskRedisPassword hides the userinfo part of a redis URL
func maskRedisPassword(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return url
	}
	if user, _, hasPassword := strings.Cut(userinfo, ":"); hasPassword {
		return scheme + "://" + user + ":****@" + host
	}
	return url
}

// validateDirectoryExists checks if a directory exists
func validateDirectoryExists(path string) error {
	if path == "" || path == "." {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// WatchConfig reloads the configuration whenever the file changes and hands
// the valid result to callback. Invalid edits are logged and skipped.
func WatchConfig(configPath string, logger *zap.Logger, callback func(*Config)) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := viper.New()
	found, err := setConfigFile(v, configPath)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no config file to watch", ErrMissingRequiredField)
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("Config file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))

		config, err := Load(v.ConfigFileUsed())
		if err != nil {
			logger.Warn("Failed to reload config", zap.Error(err))
			return
		}

		callback(config)
	})
	v.WatchConfig()

	return nil
}
