package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fenlow/curate-api/internal/batch"
	"github.com/fenlow/curate-api/internal/store"
)

// ErrTaskStillRunning is returned for delete requests against tasks
// that have not reached a terminal state.
var ErrTaskStillRunning = errors.New("task is still running")

// DeleteResult records the outcome for one task in a bulk delete.
type DeleteResult struct {
	TaskID  uuid.UUID
	Deleted bool
	Err     error
}

// BulkService performs maintenance operations over many tasks at once,
// bounded by the shared executor.
type BulkService struct {
	store  store.TaskStore
	limit  int
	logger *slog.Logger
}

// NewBulkService creates a BulkService. limit bounds how many store
// operations run concurrently during a bulk call.
func NewBulkService(taskStore store.TaskStore, limit int, logger *slog.Logger) (*BulkService, error) {
	if taskStore == nil {
		return nil, fmt.Errorf("task store cannot be nil")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", batch.ErrInvalidLimit, limit)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &BulkService{store: taskStore, limit: limit, logger: logger}, nil
}

// DeleteTasks removes the owner's terminal tasks in parallel. Each task
// succeeds or fails independently: tasks that are missing, belong to
// another project, or are still running are reported per-item without
// affecting the rest of the batch.
func (s *BulkService) DeleteTasks(
	ctx context.Context,
	ownerID uuid.UUID,
	taskIDs []uuid.UUID,
) ([]DeleteResult, error) {
	outcome, err := batch.RunAll(ctx, taskIDs, s.limit,
		func(ctx context.Context, taskID uuid.UUID) (struct{}, error) {
			return struct{}{}, s.deleteOne(ctx, ownerID, taskID)
		}, nil)
	if err != nil {
		return nil, fmt.Errorf("bulk delete aborted: %w", err)
	}

	results := make([]DeleteResult, len(taskIDs))
	for i, taskID := range taskIDs {
		results[i] = DeleteResult{
			TaskID:  taskID,
			Deleted: outcome.Results[i].Err == nil,
			Err:     outcome.Results[i].Err,
		}
	}

	s.logger.Info("bulk delete finished",
		"owner_id", ownerID,
		"requested", len(taskIDs),
		"deleted", outcome.SuccessCount,
		"failed", outcome.FailureCount)

	return results, nil
}

// deleteOne verifies ownership and terminality before removing a task.
func (s *BulkService) deleteOne(ctx context.Context, ownerID, taskID uuid.UUID) error {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.OwnerID != ownerID {
		return store.ErrTaskNotFound
	}
	if !t.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTaskStillRunning, t.Status)
	}
	return s.store.DeleteTask(ctx, taskID)
}
