package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/fenlow/curate-api/internal/domain"
	"github.com/fenlow/curate-api/internal/store"
)

// Common errors returned by the Registry
var (
	ErrNilStore       = errors.New("task store cannot be nil")
	ErrNilLogger      = errors.New("logger cannot be nil")
	ErrNilWorkFunc    = errors.New("work function cannot be nil")
	ErrTaskNotRunning = errors.New("task is not in flight")
	ErrAlreadyStarted = errors.New("task has already been started")
)

// ProgressFunc is the narrow capability handed to a work function for
// reporting progress. The percentage is clamped to 0-100 and never
// regresses as observed by pollers.
type ProgressFunc func(ctx context.Context, percentage int, payload domain.ProgressPayload) error

// WorkFunc is a strategy's entry point. It runs in its own goroutine;
// returning nil completes the task, returning an error (or panicking)
// fails it. All progress flows through the supplied ProgressFunc.
type WorkFunc func(ctx context.Context, report ProgressFunc) error

// taskState tracks an in-flight task's terminal guard and the highest
// progress value reported so far.
type taskState struct {
	terminal bool
	progress int
}

// Registry creates task records, drives their lifecycle, and serves
// lookups for polling clients. It is the single writer of task state;
// strategies only ever receive a ProgressFunc bound to their task ID.
type Registry struct {
	store  store.TaskStore
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]*taskState
	wg       sync.WaitGroup
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(taskStore store.TaskStore, logger *slog.Logger) (*Registry, error) {
	if taskStore == nil {
		return nil, ErrNilStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &Registry{
		store:    taskStore,
		logger:   logger,
		inflight: make(map[uuid.UUID]*taskState),
	}, nil
}

// CreateTask allocates a new task in the pending state and persists it.
// It returns immediately; nothing runs until StartTask.
func (r *Registry) CreateTask(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Task, error) {
	t, err := domain.NewTask(ownerID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to build task: %w", err)
	}

	if err := r.store.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}

	r.logger.Info("task created",
		"task_id", t.ID,
		"task_name", t.Name,
		"owner_id", t.OwnerID)

	return t, nil
}

// StartTask transitions the task to processing and launches the work
// function in its own goroutine. The caller must not block on
// completion; it is observed only via polling. The launched goroutine
// outlives the request context that started it.
func (r *Registry) StartTask(ctx context.Context, taskID uuid.UUID, work WorkFunc) error {
	if work == nil {
		return ErrNilWorkFunc
	}

	t, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}

	if !t.Status.CanTransitionTo(domain.TaskStatusProcessing) {
		return fmt.Errorf("%w: task %s is %s", ErrAlreadyStarted, taskID, t.Status)
	}

	r.mu.Lock()
	if _, exists := r.inflight[taskID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: task %s", ErrAlreadyStarted, taskID)
	}
	r.inflight[taskID] = &taskState{}
	r.mu.Unlock()

	if err := r.store.UpdateTaskStatus(ctx, taskID, domain.TaskStatusProcessing, ""); err != nil {
		r.mu.Lock()
		delete(r.inflight, taskID)
		r.mu.Unlock()
		return fmt.Errorf("failed to mark task processing: %w", err)
	}

	// The task must keep running after the HTTP request that started it
	// returns, so detach from the caller's cancellation.
	runCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go r.run(runCtx, taskID, work)

	return nil
}

// run executes a task's work function and records exactly one terminal
// transition, whether the function returns, errors, or panics.
func (r *Registry) run(ctx context.Context, taskID uuid.UUID, work WorkFunc) {
	defer r.wg.Done()

	logger := r.logger.With("task_id", taskID)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("task panicked", "panic", rec)
			r.finish(ctx, taskID, fmt.Errorf("task panicked: %v", rec))
		}
	}()

	logger.Info("task started")

	report := func(ctx context.Context, percentage int, payload domain.ProgressPayload) error {
		return r.UpdateProgress(ctx, taskID, percentage, payload)
	}

	err := work(ctx, report)
	r.finish(ctx, taskID, err)
}

// UpdateProgress records a progress update for an in-flight task. It is
// safe to call concurrently from parallel sub-work; updates after the
// terminal transition return ErrTaskNotRunning and regressions are
// raised to the highest value already reported.
func (r *Registry) UpdateProgress(
	ctx context.Context,
	taskID uuid.UUID,
	percentage int,
	payload domain.ProgressPayload,
) error {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	message, err := domain.EncodeProgress(payload)
	if err != nil {
		return fmt.Errorf("failed to encode progress payload: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.inflight[taskID]
	if !ok || state.terminal {
		return fmt.Errorf("%w: task %s", ErrTaskNotRunning, taskID)
	}

	if percentage < state.progress {
		percentage = state.progress
	}
	state.progress = percentage

	if err := r.store.UpdateTaskProgress(ctx, taskID, percentage, message); err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}

	return nil
}

// finish records the terminal transition for a task exactly once.
// Progress is frozen at the last reported value.
func (r *Registry) finish(ctx context.Context, taskID uuid.UUID, workErr error) {
	r.mu.Lock()
	state, ok := r.inflight[taskID]
	if !ok || state.terminal {
		r.mu.Unlock()
		return
	}
	state.terminal = true
	delete(r.inflight, taskID)
	r.mu.Unlock()

	logger := r.logger.With("task_id", taskID)

	if workErr != nil {
		logger.Error("task failed", "error", workErr)
		if err := r.store.UpdateTaskStatus(ctx, taskID, domain.TaskStatusFailed, workErr.Error()); err != nil {
			logger.Error("failed to mark task failed", "error", err)
		}
		return
	}

	logger.Info("task completed")
	if err := r.store.UpdateTaskStatus(ctx, taskID, domain.TaskStatusCompleted, ""); err != nil {
		logger.Error("failed to mark task completed", "error", err)
	}
}

// GetTask is the read-only lookup used by polling clients.
func (r *Registry) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return r.store.GetTask(ctx, taskID)
}

// ListTasks retrieves an owner's tasks, optionally filtered by status.
func (r *Registry) ListTasks(
	ctx context.Context,
	ownerID uuid.UUID,
	status domain.TaskStatus,
) ([]*domain.Task, error) {
	return r.store.ListTasks(ctx, ownerID, status)
}

// Wait blocks until every launched task goroutine has finished.
// Used during shutdown and in tests.
func (r *Registry) Wait() {
	r.wg.Wait()
}
