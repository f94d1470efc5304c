package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a conversion task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrEmptyTaskOwnerID = errors.New("task owner ID cannot be empty")
	ErrEmptyTaskName    = errors.New("task name cannot be empty")
	ErrInvalidStatus    = errors.New("invalid task status")
	ErrInvalidProgress  = errors.New("task progress must be between 0 and 100")
)

// Task represents a polled unit of asynchronous conversion work.
// Progress and message are written only by the owning strategy through
// the registry; polling clients read them until the status is terminal.
type Task struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Status    TaskStatus      `json:"status"`
	Progress  int             `json:"progress"`
	Message   json.RawMessage `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewTask creates a new Task in the pending state with a fresh UUID.
// Returns an error if validation fails.
func NewTask(ownerID uuid.UUID, name string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   ownerID,
		Status:    TaskStatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.OwnerID == uuid.Nil {
		return ErrEmptyTaskOwnerID
	}

	if t.Name == "" {
		return ErrEmptyTaskName
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidStatus
	}

	if t.Progress < 0 || t.Progress > 100 {
		return ErrInvalidProgress
	}

	return nil
}

// Validate checks that s is a known task status.
func (s TaskStatus) Validate() error {
	if !isValidTaskStatus(s) {
		return ErrInvalidStatus
	}
	return nil
}

// IsTerminal reports whether the status permits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition. The lifecycle is strictly
// pending -> processing -> {completed|failed}.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusProcessing
	case TaskStatusProcessing:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
