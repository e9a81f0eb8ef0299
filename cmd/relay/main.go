package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	httpAdapter "github.com/lorrc/realtime-relay/internal/adapters/primary/http"
	mw "github.com/lorrc/realtime-relay/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/lorrc/realtime-relay/internal/adapters/primary/websocket"
	"github.com/lorrc/realtime-relay/internal/adapters/secondary/firestore"
	"github.com/lorrc/realtime-relay/internal/auth"
	"github.com/lorrc/realtime-relay/internal/config"
	apperrors "github.com/lorrc/realtime-relay/internal/core/errors"
	"github.com/lorrc/realtime-relay/internal/core/routing"
	"github.com/lorrc/realtime-relay/internal/core/services"
	"github.com/lorrc/realtime-relay/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"mode", cfg.Relay.Mode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize the Hub (registry + dispatcher)
	hub := wsAdapter.NewHub(routing.NewTable(cfg.Relay.Mode), cfg.Relay.EventBuffer, logger)
	go hub.Run()

	// 4. Initialize the Upstream Change Source
	// Missing credentials are never silent: the operator chooses fail-fast
	// via RELAY_REQUIRE_UPSTREAM, otherwise the service runs degraded and
	// serves connections without change events.
	var source *firestore.Source
	if missing := cfg.Firebase.MissingFields(); len(missing) > 0 {
		cfgErr := &apperrors.ConfigError{Missing: missing}
		if cfg.Relay.RequireUpstream {
			logger.Error("upstream credentials incomplete", "error", cfgErr)
			os.Exit(1)
		}
		logger.Warn("starting without upstream change source", "error", cfgErr)
	} else {
		source, err = firestore.New(ctx, cfg.Firebase, logger)
		if err != nil {
			if cfg.Relay.RequireUpstream {
				logger.Error("failed to create upstream client", "error", err)
				os.Exit(1)
			}
			logger.Warn("starting without upstream change source", "error", err)
			source = nil
		}
	}

	if source != nil {
		defer func() {
			if err := source.Close(); err != nil {
				logger.Warn("failed to close upstream client", "error", err)
			}
		}()

		relay := services.NewRelayService(source, hub, logger)
		go relay.Run(ctx)
		logger.Info("upstream change source attached", "project", cfg.Firebase.ProjectID)
	}

	// 5. Optional WebSocket authentication
	var tokenManager *auth.TokenManager
	if cfg.Auth.Secret != "" {
		tokenManager = auth.NewTokenManager(cfg.Auth.Secret)
	} else {
		logger.Info("websocket authentication disabled")
	}

	// 6. Handlers (Primary Adapters)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, tokenManager, cfg, logger)

	var upstream httpAdapter.UpstreamChecker
	if source != nil {
		upstream = source
	}
	healthHandler := httpAdapter.NewHealthHandler(hub, upstream, cfg.App.Version)

	// 7. Setup Router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(cfg),
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	if cfg.RateLimit.Enabled {
		limiter := mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		r.Use(limiter.Middleware)
	}

	// Health check endpoints for standard probe paths
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// WebSocket endpoint
	r.Get("/ws", wsHandler.ServeHTTP)

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	// Stop the upstream watchers first so no new events queue up behind
	// closing connections.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// corsOrigins mirrors the websocket origin policy for the HTTP endpoints:
// everything in development, the configured allow-list otherwise.
func corsOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || len(cfg.WebSocket.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.WebSocket.AllowedOrigins
}
