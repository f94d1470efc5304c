package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenlow/curate-api/internal/domain"
	"github.com/fenlow/curate-api/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.MemoryTaskStore) {
	t.Helper()

	taskStore := store.NewMemoryTaskStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	registry, err := NewRegistry(taskStore, logger)
	require.NoError(t, err)
	return registry, taskStore
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewRegistry(nil, logger)
	assert.ErrorIs(t, err, ErrNilStore)

	_, err = NewRegistry(store.NewMemoryTaskStore(), nil)
	assert.ErrorIs(t, err, ErrNilLogger)
}

func TestRegistry_CreateTask(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	created, err := registry.CreateTask(ctx, uuid.New(), "local:notes.txt")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, created.Status)
	assert.Equal(t, 0, created.Progress)

	got, err := registry.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, domain.TaskStatusPending, got.Status)
}

func TestRegistry_StartTask_Completes(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	created, err := registry.CreateTask(ctx, uuid.New(), "local:notes.txt")
	require.NoError(t, err)

	err = registry.StartTask(ctx, created.ID, func(ctx context.Context, report ProgressFunc) error {
		return report(ctx, 100, domain.LocalProgress{SourceFile: "notes.txt"})
	})
	require.NoError(t, err)
	registry.Wait()

	got, err := registry.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Empty(t, got.Error)

	payload, err := domain.DecodeProgress(got.Message)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyLocal, payload.Kind())
}

func TestRegistry_StartTask_WorkError(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	created, err := registry.CreateTask(ctx, uuid.New(), "cloud_batch:report.pdf")
	require.NoError(t, err)

	err = registry.StartTask(ctx, created.ID, func(ctx context.Context, report ProgressFunc) error {
		_ = report(ctx, 30, domain.CloudBatchProgress{State: "running", Extracted: 3, Total: 10})
		return errors.New("remote conversion failed")
	})
	require.NoError(t, err)
	registry.Wait()

	got, err := registry.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, "remote conversion failed", got.Error)
	// Progress is frozen at the last reported value.
	assert.Equal(t, 30, got.Progress)
}

func TestRegistry_StartTask_Panic(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	created, err := registry.CreateTask(ctx, uuid.New(), "vision:scan.pdf")
	require.NoError(t, err)

	err = registry.StartTask(ctx, created.ID, func(ctx context.Context, report ProgressFunc) error {
		panic("strategy bug")
	})
	require.NoError(t, err)
	registry.Wait()

	got, err := registry.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, "strategy bug")
}

func TestRegistry_StartTask_Guards(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	created, err := registry.CreateTask(ctx, uuid.New(), "local:a.txt")
	require.NoError(t, err)

	t.Run("nil work function", func(t *testing.T) {
		assert.ErrorIs(t, registry.StartTask(ctx, created.ID, nil), ErrNilWorkFunc)
	})

	t.Run("unknown task", func(t *testing.T) {
		err := registry.StartTask(ctx, uuid.New(), func(ctx context.Context, report ProgressFunc) error {
			return nil
		})
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("double start rejected", func(t *testing.T) {
		block := make(chan struct{})
		err := registry.StartTask(ctx, created.ID, func(ctx context.Context, report ProgressFunc) error {
			<-block
			return nil
		})
		require.NoError(t, err)

		err = registry.StartTask(ctx, created.ID, func(ctx context.Context, report ProgressFunc) error {
			return nil
		})
		assert.ErrorIs(t, err, ErrAlreadyStarted)

		close(block)
		registry.Wait()
	})

	t.Run("start after terminal rejected", func(t *testing.T) {
		err := registry.StartTask(ctx, created.ID, func(ctx context.Context, report ProgressFunc) error {
			return nil
		})
		assert.ErrorIs(t, err, ErrAlreadyStarted)
	})
}

func TestRegistry_UpdateProgress(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	created, err := registry.CreateTask(ctx, uuid.New(), "vision:scan.pdf")
	require.NoError(t, err)

	started := make(chan struct{})
	finish := make(chan struct{})
	err = registry.StartTask(ctx, created.ID, func(ctx context.Context, report ProgressFunc) error {
		close(started)
		<-finish
		return nil
	})
	require.NoError(t, err)
	<-started

	payload := domain.VisionProgress{Model: "gemini-2.0-flash", Completed: 1, Total: 5}

	t.Run("update stores progress", func(t *testing.T) {
		require.NoError(t, registry.UpdateProgress(ctx, created.ID, 20, payload))

		got, err := registry.GetTask(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 20, got.Progress)
	})

	t.Run("progress never regresses", func(t *testing.T) {
		require.NoError(t, registry.UpdateProgress(ctx, created.ID, 60, payload))
		require.NoError(t, registry.UpdateProgress(ctx, created.ID, 40, payload))

		got, err := registry.GetTask(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 60, got.Progress)
	})

	t.Run("percentage is clamped", func(t *testing.T) {
		require.NoError(t, registry.UpdateProgress(ctx, created.ID, 250, payload))

		got, err := registry.GetTask(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Progress)
	})

	close(finish)
	registry.Wait()

	t.Run("update after terminal rejected", func(t *testing.T) {
		err := registry.UpdateProgress(ctx, created.ID, 100, payload)
		assert.ErrorIs(t, err, ErrTaskNotRunning)

		got, err := registry.GetTask(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	})
}

func TestRegistry_ConcurrentProgress(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	created, err := registry.CreateTask(ctx, uuid.New(), "vision:scan.pdf")
	require.NoError(t, err)

	err = registry.StartTask(ctx, created.ID, func(ctx context.Context, report ProgressFunc) error {
		done := make(chan struct{}, 10)
		for i := 1; i <= 10; i++ {
			go func(pct int) {
				_ = report(ctx, pct*10, domain.VisionProgress{Completed: pct, Total: 10})
				done <- struct{}{}
			}(i)
		}
		for i := 0; i < 10; i++ {
			<-done
		}
		return nil
	})
	require.NoError(t, err)
	registry.Wait()

	got, err := registry.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
}

func TestRegistry_ListTasks(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := registry.CreateTask(ctx, owner, "local:a.txt")
	require.NoError(t, err)
	_, err = registry.CreateTask(ctx, owner, "local:b.txt")
	require.NoError(t, err)
	_, err = registry.CreateTask(ctx, uuid.New(), "local:other.txt")
	require.NoError(t, err)

	tasks, err := registry.ListTasks(ctx, owner, "")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}
