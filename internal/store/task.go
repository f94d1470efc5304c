package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/fenlow/curate-api/internal/domain"
)

// TaskStore defines the interface for persisting conversion tasks.
// Implementations must be safe for concurrent use: the registry writes
// progress from task goroutines while API handlers read for pollers.
type TaskStore interface {
	// CreateTask persists a new task. Returns ErrDuplicate if the ID
	// is already in use.
	CreateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by ID. Returns ErrTaskNotFound if the
	// task does not exist.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListTasks retrieves the tasks belonging to an owner, newest first.
	// A non-empty status filters the result.
	ListTasks(ctx context.Context, ownerID uuid.UUID, status domain.TaskStatus) ([]*domain.Task, error)

	// UpdateTaskStatus sets the task's status and, for failed tasks, the
	// error message. Returns ErrTaskNotFound if the task does not exist.
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus, errorMsg string) error

	// UpdateTaskProgress sets the task's progress percentage and message
	// payload. Returns ErrTaskNotFound if the task does not exist.
	UpdateTaskProgress(ctx context.Context, id uuid.UUID, progress int, message json.RawMessage) error

	// DeleteTask removes a task. Returns ErrTaskNotFound if the task
	// does not exist.
	DeleteTask(ctx context.Context, id uuid.UUID) error
}
