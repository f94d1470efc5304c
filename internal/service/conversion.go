// Package service contains the application services that sit between
// the HTTP handlers and the task registry: starting conversions and
// bulk task maintenance.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/fenlow/curate-api/internal/domain"
	"github.com/fenlow/curate-api/internal/platform/filestore"
	"github.com/fenlow/curate-api/internal/store"
	"github.com/fenlow/curate-api/internal/strategy"
	"github.com/fenlow/curate-api/internal/task"
)

// Common service errors
var (
	// ErrSourceNotFound is returned when the named upload does not
	// exist in the project's file area.
	ErrSourceNotFound = errors.New("source file not found")
)

// ConversionService validates a conversion request, creates its task,
// and hands the strategy's work function to the registry.
type ConversionService struct {
	registry   *task.Registry
	strategies *strategy.Set
	files      *filestore.FileStore
	logger     *slog.Logger
}

// NewConversionService creates a ConversionService.
func NewConversionService(
	registry *task.Registry,
	strategies *strategy.Set,
	files *filestore.FileStore,
	logger *slog.Logger,
) (*ConversionService, error) {
	if registry == nil {
		return nil, fmt.Errorf("task registry cannot be nil")
	}
	if strategies == nil {
		return nil, fmt.Errorf("strategy set cannot be nil")
	}
	if files == nil {
		return nil, fmt.Errorf("file store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &ConversionService{
		registry:   registry,
		strategies: strategies,
		files:      files,
		logger:     logger,
	}, nil
}

// Process starts an asynchronous conversion and returns the ID of its
// tracking task. Strategy selection and option validation happen
// synchronously so bad requests fail before any task exists; the
// conversion itself runs in a task goroutine the caller polls.
func (s *ConversionService) Process(
	ctx context.Context,
	ownerID uuid.UUID,
	kind domain.StrategyKind,
	fileName string,
	opts strategy.Options,
) (uuid.UUID, error) {
	strat, err := s.strategies.Get(kind)
	if err != nil {
		return uuid.Nil, err
	}

	if err := strat.Validate(opts); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	srcPath, err := s.files.SourcePath(ownerID, fileName)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if _, err := os.Stat(srcPath); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrSourceNotFound, fileName)
	}

	created, err := s.registry.CreateTask(ctx, ownerID, fmt.Sprintf("%s:%s", kind, fileName))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create task: %w", err)
	}

	src := strategy.Source{OwnerID: ownerID, FileName: fileName, Path: srcPath}
	work := func(ctx context.Context, report task.ProgressFunc) error {
		return strat.Run(ctx, src, opts, report)
	}

	if err := s.registry.StartTask(ctx, created.ID, work); err != nil {
		return uuid.Nil, fmt.Errorf("failed to start task: %w", err)
	}

	s.logger.Info("conversion started",
		"task_id", created.ID,
		"strategy", kind,
		"file_name", fileName,
		"owner_id", ownerID)

	return created.ID, nil
}

// GetTask returns one of the owner's tasks. Tasks belonging to other
// projects are reported as not found rather than forbidden.
func (s *ConversionService) GetTask(ctx context.Context, ownerID, taskID uuid.UUID) (*domain.Task, error) {
	t, err := s.registry.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		return nil, store.ErrTaskNotFound
	}
	return t, nil
}

// ListTasks returns the owner's tasks, optionally filtered by status.
func (s *ConversionService) ListTasks(
	ctx context.Context,
	ownerID uuid.UUID,
	status domain.TaskStatus,
) ([]*domain.Task, error) {
	if status != "" {
		if err := status.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
	}
	return s.registry.ListTasks(ctx, ownerID, status)
}
