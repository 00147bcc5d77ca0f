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

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/classifier"
	"github.com/your-org/order-assistant/internal/config"
	"github.com/your-org/order-assistant/internal/conversation"
	"github.com/your-org/order-assistant/internal/logging"
	"github.com/your-org/order-assistant/internal/metrics"
	"github.com/your-org/order-assistant/internal/openai"
	"github.com/your-org/order-assistant/internal/store"
)

const (
	serviceName = "order-assistant"
	version     = "1.0.0"
)

// options are the persistent flags shared by every command
type options struct {
	configPath string
	envFile    string
	provider   string
	storage    string
	dbPath     string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "orderbot",
		Short:         "Conversational order assistant",
		Long:          "orderbot collects order details through a guided conversation, classifies them as generic or bulk and stores the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to configuration file (default ./configs/config.yaml or ./config.yaml)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before the environment is read")
	flags.StringVar(&opts.provider, "provider", "", "Completion provider: openai, google or groq")
	flags.StringVar(&opts.storage, "storage", "", "Storage backend: sqlite, redis or memory")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path")

	root.AddCommand(
		newServeCommand(opts),
		newChatCommand(opts),
		newOrdersCommand(opts),
		newHistoryCommand(opts),
		newProviderCommand(opts),
		newDemoCommand(opts),
	)
	return root
}

// app holds the dependencies built from configuration
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	gateway  store.Gateway
	registry *openai.Registry
}

// newApp loads configuration, applies flag overrides and opens storage.
// logOverride replaces the configured log output and level when set.
func newApp(ctx context.Context, opts *options, logOverride *config.LoggingConfig) (*app, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ConfigPath:       opts.configPath,
		DotEnvPath:       opts.envFile,
		ValidateRequired: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return nil, err
	}
	if logOverride != nil {
		cfg.Logging = *logOverride
	}

	logger, err := logging.New(cfg.Logging, "orderbot")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	masked := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded successfully",
		zap.String("environment", masked.Server.Environment),
		zap.String("default_provider", masked.LLM.DefaultProvider),
		zap.String("storage_type", masked.Storage.Type),
		zap.String("db_path", masked.Storage.DBPath),
		zap.String("redis_url", masked.Storage.RedisURL),
		zap.String("openai_api_key", masked.OpenAI.APIKey),
		zap.String("google_api_key", masked.Google.APIKey),
		zap.String("groq_api_key", masked.Groq.APIKey),
	)

	gateway, err := store.Open(ctx, cfg.StoreConfig(), logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Type, err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		gateway:  gateway,
		registry: openai.NewRegistry(cfg.ProviderSettings(), logger),
	}, nil
}

func applyOverrides(cfg *config.Config, opts *options) error {
	if opts.provider != "" {
		p, err := openai.ParseProvider(opts.provider)
		if err != nil {
			return err
		}
		cfg.LLM.DefaultProvider = string(p)
	}
	if opts.storage != "" {
		cfg.Storage.Type = opts.storage
	}
	if opts.dbPath != "" {
		cfg.Storage.DBPath = opts.dbPath
	}
	return nil
}

// Close releases storage and flushes the logger
func (a *app) Close() {
	if err := a.gateway.Close(); err != nil {
		a.logger.Warn("Failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *app) newManager(m *metrics.Metrics) *conversation.Manager {
	return conversation.NewManager(conversation.ManagerConfig{
		MaxSessions:     a.cfg.Session.MaxSessions,
		SessionTTL:      a.cfg.Session.TTL,
		DefaultProvider: a.cfg.DefaultProvider(),
	}, conversation.Dependencies{
		Gateway:           a.gateway,
		Providers:         a.registry,
		ClassifierOptions: []classifier.Option{classifier.WithTimeout(a.cfg.LLM.Timeout)},
		Metrics:           m,
		Logger:            a.logger,
	})
}
