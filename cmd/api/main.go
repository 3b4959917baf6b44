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

	_ "github.com/lib/pq" // postgres driver (optional catalog source)

	"github.com/safesteps-app/safesteps-backend/internal/ai"
	"github.com/safesteps-app/safesteps-backend/internal/api"
	"github.com/safesteps-app/safesteps-backend/internal/catalog"
	"github.com/safesteps-app/safesteps-backend/internal/config"
	"github.com/safesteps-app/safesteps-backend/internal/pipeline"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// ── Guide catalog ─────────────────────────────────────────────────────────
	// Postgres when the upload job publishes to a table, JSON file otherwise.
	var source catalog.Source
	if cfg.CatalogDatabaseURL != "" {
		pool, err := catalog.OpenDB(cfg.CatalogDatabaseURL)
		if err != nil {
			return fmt.Errorf("catalog database: %w", err)
		}
		defer pool.Close()
		source = catalog.NewPostgresSource(pool)
	} else {
		source = catalog.NewFileSource(cfg.GuidesMapPath)
	}

	cat := catalog.New(source, logger)
	// An unreadable catalog at startup is survivable: guide resolution comes
	// up empty and every request degrades to short-form until a refresh lands.
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := cat.Reload(initCtx); err != nil {
		logger.Warn("catalog: initial load failed, serving without guides until refresh", "error", err)
	} else {
		logger.Info("catalog loaded", "source", source.String(), "entries", cat.Snapshot().Len())
	}
	cancelInit()

	// ── AI ────────────────────────────────────────────────────────────────────
	gemini := ai.NewGeminiClient(cfg.GeminiAPIKey, ai.GeminiConfig{
		Model:             cfg.GeminiModel,
		CallTimeout:       cfg.SynthesisTimeout,
		RequestsPerSecond: cfg.AIRequestsPerSecond,
		Burst:             cfg.AIBurst,
	})
	logger.Info("ai: using Gemini", "model", cfg.GeminiModel)

	// ── Pipeline ──────────────────────────────────────────────────────────────
	p := pipeline.New(gemini, gemini, cat, pipeline.Config{
		ClassifyTimeout:  cfg.ClassifyTimeout,
		SynthesisTimeout: cfg.SynthesisTimeout,
	}, logger)

	// ── Situations seed ───────────────────────────────────────────────────────
	situations := loadSituations(cfg.SituationsPath, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(p, situations, api.Config{Env: cfg.Env}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // deep synthesis can take a while
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal. Catalog refresher and HTTP server
	// both respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the catalog refresher in a background goroutine. It blocks until
	// ctx is done.
	go cat.Run(ctx, catalog.RefresherConfig{Interval: cfg.CatalogRefresh})

	// Start the HTTP server in a background goroutine.
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// loadSituations reads the optional static situations seed. A missing or
// unreadable file just disables the seed — the endpoint serves an empty list.
func loadSituations(path string, logger *slog.Logger) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("situations seed not loaded", "path", path, "error", err)
		return nil
	}
	return data
}
