// Package main is the entrypoint for the blood test report analysis API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/bloodwork/internal/api"
	"github.com/kiranshivaraju/bloodwork/internal/api/handler"
	mw "github.com/kiranshivaraju/bloodwork/internal/api/middleware"
	"github.com/kiranshivaraju/bloodwork/internal/api/response"
	"github.com/kiranshivaraju/bloodwork/internal/app"
	"github.com/kiranshivaraju/bloodwork/internal/config"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env, "mode", cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Result store, Redis, AI provider and pipeline
	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	// 3. In-process workers
	pool := a.NewPool()
	if cfg.Queue.WorkerConcurrency > 0 {
		pool.Start(ctx)
	} else {
		slog.Info("in-process workers disabled; run cmd/worker to process jobs")
	}

	// 4. Maintenance: staging sweep and stale job requeue
	sweeper, err := a.NewSweeper()
	if err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}
	sweeper.Start()

	// 5. Build router with dependencies
	analyze := handler.NewAnalyzeHandler(a.Staging, a.Queue)
	if cfg.Server.Mode == config.ModeSync {
		analyze = handler.NewSyncAnalyzeHandler(a.Staging, a.Processor)
	}

	router := api.NewRouter(api.Dependencies{
		RateLimit:      mw.NewRateLimit(a.Queue, cfg.Server.RateLimit),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,

		RootHandler:    handler.NewRootHandler(),
		HealthHandler:  healthHandler(a.Results, a.Queue),
		AnalyzeHandler: analyze,
		ResultsHandler: handler.NewResultsHandler(a.Queue, a.Results),
		HistoryHandler: handler.NewHistoryHandler(a.Results),
	})

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 60 * time.Second,
		// sync mode holds the request open for the whole pipeline
		WriteTimeout: cfg.AI.InferenceTimeout*12 + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("server shutdown: %w", err)
	}
	sweeper.Stop(shutdownCtx)
	if err := pool.Stop(shutdownCtx); err != nil {
		slog.Warn("worker pool did not drain", "error", err)
	}

	if serveErr != nil {
		return serveErr
	}
	slog.Info("server stopped gracefully")
	return nil
}

// Pinger is satisfied by the result store and the queue.
type Pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks result store and queue connectivity.
func healthHandler(db, q Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"queue":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := q.Ping(r.Context()); err != nil {
			checks["queue"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["queue"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
