package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fenlow/curate-api/internal/domain"
)

// MemoryTaskStore is an in-memory TaskStore guarded by a read-write
// mutex. It is volatile: task records do not survive a process restart,
// so pollers lose in-flight tasks on redeploy. Intended for development
// and tests; production deployments use the PostgreSQL store.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task
}

// Ensure MemoryTaskStore implements TaskStore.
var _ TaskStore = (*MemoryTaskStore)(nil)

// NewMemoryTaskStore creates an empty in-memory task store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[uuid.UUID]*domain.Task),
	}
}

// CreateTask persists a new task.
func (s *MemoryTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("%w: task %s", ErrDuplicate, task.ID)
	}

	s.tasks[task.ID] = cloneTask(task)
	return nil
}

// GetTask retrieves a task by ID.
func (s *MemoryTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}

	return cloneTask(task), nil
}

// ListTasks retrieves the tasks belonging to an owner, newest first.
func (s *MemoryTaskStore) ListTasks(
	ctx context.Context,
	ownerID uuid.UUID,
	status domain.TaskStatus,
) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Task
	for _, task := range s.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if status != "" && task.Status != status {
			continue
		}
		result = append(result, cloneTask(task))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// UpdateTaskStatus sets the task's status and error message.
func (s *MemoryTaskStore) UpdateTaskStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	errorMsg string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}

	task.Status = status
	task.Error = errorMsg
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateTaskProgress sets the task's progress percentage and message payload.
func (s *MemoryTaskStore) UpdateTaskProgress(
	ctx context.Context,
	id uuid.UUID,
	progress int,
	message json.RawMessage,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}

	task.Progress = progress
	if message != nil {
		task.Message = append(json.RawMessage(nil), message...)
	}
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteTask removes a task.
func (s *MemoryTaskStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrTaskNotFound
	}

	delete(s.tasks, id)
	return nil
}

// cloneTask copies a task so callers never share the stored record.
func cloneTask(t *domain.Task) *domain.Task {
	clone := *t
	if t.Message != nil {
		clone.Message = append(json.RawMessage(nil), t.Message...)
	}
	return &clone
}
