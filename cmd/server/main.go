package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pointflow/pointflow/internal/api"
	"github.com/pointflow/pointflow/internal/config"
	"github.com/pointflow/pointflow/internal/lifecycle"
	"github.com/pointflow/pointflow/internal/realtime"
	"github.com/pointflow/pointflow/internal/scales"
	"github.com/pointflow/pointflow/internal/sessions"
)

func main() {
	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	// Point scales
	catalog := scales.NewCatalog()
	if cfg.PointScalesPath != "" {
		n, err := catalog.LoadFile(cfg.PointScalesPath)
		if err != nil {
			logger.Error("failed to load point scales", "path", cfg.PointScalesPath, "error", err)
			os.Exit(1)
		}
		logger.Info("custom point scales loaded", "count", n, "path", cfg.PointScalesPath)
	}

	// Sessions
	store := sessions.NewStore(cfg.SessionTTL, logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Realtime hub
	hub := realtime.NewHub(store, catalog, logger)
	go hub.Run(ctx)

	// Expiry sweeper
	sweeper := lifecycle.NewSweeper(store, cfg.SweepInterval, hub.Evict, logger)
	go sweeper.Run(ctx)

	// Router
	policy := api.OriginPolicy{Origins: cfg.AllowedOrigins, Any: cfg.AllowsAnyOrigin()}
	router := api.NewRouter(store, catalog, hub, policy, logger)

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("point flow server starting",
			"addr", addr,
			"origins", cfg.AllowedOrigins,
			"session_ttl", cfg.SessionTTL.String(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	// Closes every WebSocket client and stops the sweeper.
	stop()

	logger.Info("server stopped")
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
