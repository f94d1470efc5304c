package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/fenlow/curate-api/internal/config"
	"github.com/fenlow/curate-api/internal/platform/docbatch"
	"github.com/fenlow/curate-api/internal/platform/filestore"
	"github.com/fenlow/curate-api/internal/platform/postgres"
	"github.com/fenlow/curate-api/internal/platform/vision"
	"github.com/fenlow/curate-api/internal/service"
	"github.com/fenlow/curate-api/internal/service/auth"
	"github.com/fenlow/curate-api/internal/store"
	"github.com/fenlow/curate-api/internal/strategy"
	"github.com/fenlow/curate-api/internal/task"
)

// application holds the wired dependencies of the running server.
type application struct {
	config      *config.Config
	logger      *slog.Logger
	db          *sql.DB // nil when the memory store is selected
	registry    *task.Registry
	conversions *service.ConversionService
	bulk        *service.BulkService
	jwtService  auth.JWTService
	keyVerifier auth.KeyVerifier
}

// newApplication wires every component from configuration: storage,
// the task registry, the three conversion strategies, and the services
// the HTTP layer exposes.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	var (
		db        *sql.DB
		taskStore store.TaskStore
	)

	if cfg.Database.IsMemory() {
		taskStore = store.NewMemoryTaskStore()
		logger.Warn("using volatile in-memory task store; tasks do not survive restarts")
	} else {
		var err error
		db, err = setupDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := runMigrations(db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
		taskStore = postgres.NewPostgresTaskStore(db)
	}

	registry, err := task.NewRegistry(taskStore, logger)
	if err != nil {
		return nil, err
	}

	files, err := filestore.New(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to set up file store: %w", err)
	}

	strategies, err := buildStrategies(cfg, files, logger)
	if err != nil {
		return nil, err
	}

	conversions, err := service.NewConversionService(registry, strategies, files, logger)
	if err != nil {
		return nil, err
	}

	bulk, err := service.NewBulkService(taskStore, cfg.Batch.DefaultLimit, logger)
	if err != nil {
		return nil, err
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to set up JWT service: %w", err)
	}

	return &application{
		config:      cfg,
		logger:      logger,
		db:          db,
		registry:    registry,
		conversions: conversions,
		bulk:        bulk,
		jwtService:  jwtService,
		keyVerifier: auth.NewBcryptVerifier(),
	}, nil
}

// buildStrategies assembles the registered conversion strategies.
func buildStrategies(
	cfg *config.Config,
	files *filestore.FileStore,
	logger *slog.Logger,
) (*strategy.Set, error) {
	local, err := strategy.NewLocalStrategy(files, logger)
	if err != nil {
		return nil, err
	}

	batchClient, err := docbatch.NewClient(cfg.DocBatch.BaseURL, cfg.DocBatch.Token, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up doc batch client: %w", err)
	}

	cloudBatch, err := strategy.NewCloudBatchStrategy(
		batchClient,
		files,
		time.Duration(cfg.DocBatch.PollIntervalSeconds)*time.Second,
		cfg.DocBatch.MaxPollAttempts,
		logger,
	)
	if err != nil {
		return nil, err
	}

	visionStrategy, err := strategy.NewVisionStrategy(strategy.VisionStrategyConfig{
		NewConverter: func(ctx context.Context, apiKey string) (strategy.PageConverter, error) {
			return vision.NewClient(ctx, apiKey, logger)
		},
		Pages:         strategy.DirPageLoader{},
		Files:         files,
		VisionModels:  cfg.LLM.VisionModels,
		DefaultAPIKey: cfg.LLM.GeminiAPIKey,
		DefaultLimit:  cfg.Batch.DefaultLimit,
		MaxLimit:      cfg.LLM.MaxConcurrency,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return strategy.NewSet(local, cloudBatch, visionStrategy)
}

// Run serves HTTP until shutdown, then drains in-flight tasks.
func (app *application) Run(ctx context.Context) error {
	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup releases application resources after the HTTP server stops.
// Launched task goroutines are drained first so no terminal status
// write is lost.
func (app *application) cleanup() {
	app.registry.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}
