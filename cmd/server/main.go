// Package main implements the entry point for the curate API server,
// which runs asynchronous document-to-markdown conversions and exposes
// polled task state over HTTP.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/fenlow/curate-api/internal/config"
	"github.com/fenlow/curate-api/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// run loads configuration, wires the application, and serves until a
// shutdown signal arrives.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"store", storeKind(cfg))

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}

func storeKind(cfg *config.Config) string {
	if cfg.Database.IsMemory() {
		return "memory"
	}
	return "postgres"
}
