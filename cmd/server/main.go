// Package main provides the entry point for the Deep Research API server.
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

	"github.com/maauso/deepresearch-api/internal/bootstrap"
	"github.com/maauso/deepresearch-api/internal/config"
	"github.com/maauso/deepresearch-api/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from .env and the environment
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = config.DefaultEnvFile
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting Deep Research API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("model", cfg.OpenAIModel),
		slog.Int("max_research_depth", cfg.MaxResearchDepth),
		slog.Duration("job_retention", cfg.JobRetention),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	if deps.Janitor != nil {
		deps.Janitor.Start()
	}

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.Orchestrator, deps.Registry, logger)
	router := server.NewRouter(handlers, logger, server.Config{
		AllowedOrigins: cfg.CORSOrigins,
	})

	// Create HTTP server. Streaming responses clear their own write deadline.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if deps.Janitor != nil {
		<-deps.Janitor.Stop().Done()
	}

	// Cancel running jobs first so open streams receive their failed event
	// and return before the listener drains.
	logger.Info("cancelling running jobs...")
	if err := deps.Registry.Shutdown(ctx); err != nil {
		logger.Warn("jobs did not finish before timeout", slog.Any("error", err))
	}

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
