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
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/order-assistant/internal/config"
	"github.com/your-org/order-assistant/internal/conversation"
	"github.com/your-org/order-assistant/internal/health"
	"github.com/your-org/order-assistant/internal/metrics"
)

const (
	// ShutdownTimeout bounds graceful server shutdown
	ShutdownTimeout = 10 * time.Second
	// ReadHeaderTimeout bounds slow clients
	ReadHeaderTimeout = 10 * time.Second
)

func newServeCommand(opts *options) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if port > 0 {
				a.cfg.Server.Port = port
			}
			return serve(ctx, a, opts.configPath)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides server.port)")
	return cmd
}

// newEngine wires the API, health and metrics endpoints
func newEngine(a *app, reg *prometheus.Registry) (*gin.Engine, *conversation.Manager) {
	if a.cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.MustNewMetrics(reg)
	manager := a.newManager(m)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(a.logger))

	conversation.NewAPIHandler(manager, a.gateway, a.cfg.History.Limit, a.logger).RegisterRoutes(engine)

	healthManager := health.NewManager(serviceName, version, a.cfg.Server.Environment, a.logger)
	healthManager.AddChecker("store", health.StoreChecker(a.cfg.Storage.Type, a.gateway))
	healthManager.AddChecker("completion_backend", health.ProviderChecker(a.registry, manager.DefaultProvider))
	healthManager.AddChecker("sessions", health.SessionsChecker(manager.Len, a.cfg.Session.MaxSessions))
	engine.GET("/health", healthManager.Handler())

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	return engine, manager
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
		)
	}
}

func serve(ctx context.Context, a *app, configPath string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine, manager := newEngine(a, reg)

	if err := config.WatchConfig(configPath, a.logger, func(cfg *config.Config) {
		if cfg.LLM.DefaultProvider == string(manager.DefaultProvider()) {
			return
		}
		if err := manager.SwitchProvider(cfg.LLM.DefaultProvider); err != nil {
			a.logger.Warn("Failed to switch provider after config change", zap.Error(err))
		}
	}); err != nil {
		a.logger.Info("Config hot reload disabled", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting order assistant API",
			zap.String("addr", srv.Addr),
			zap.String("provider", string(manager.DefaultProvider())),
			zap.String("storage_type", a.cfg.Storage.Type))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down order assistant API")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
