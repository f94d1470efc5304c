package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenlow/curate-api/internal/domain"
	"github.com/fenlow/curate-api/internal/store"
)

// seedTask inserts a task with the given status directly into the store.
func seedTask(t *testing.T, taskStore store.TaskStore, ownerID uuid.UUID, status domain.TaskStatus) uuid.UUID {
	t.Helper()

	created, err := domain.NewTask(ownerID, "cloud_batch:doc.pdf")
	require.NoError(t, err)
	created.Status = status
	require.NoError(t, taskStore.CreateTask(context.Background(), created))
	return created.ID
}

func TestNewBulkService(t *testing.T) {
	t.Parallel()

	t.Run("rejects nil store", func(t *testing.T) {
		t.Parallel()
		_, err := NewBulkService(nil, 4, testLogger())
		assert.Error(t, err)
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		t.Parallel()
		_, err := NewBulkService(store.NewMemoryTaskStore(), 0, testLogger())
		assert.Error(t, err)
	})

	t.Run("rejects nil logger", func(t *testing.T) {
		t.Parallel()
		_, err := NewBulkService(store.NewMemoryTaskStore(), 4, nil)
		assert.Error(t, err)
	})
}

func TestBulkServiceDeleteTasks(t *testing.T) {
	t.Parallel()

	t.Run("deletes terminal tasks and skips the rest independently", func(t *testing.T) {
		t.Parallel()

		taskStore := store.NewMemoryTaskStore()
		ownerID := uuid.New()

		completedID := seedTask(t, taskStore, ownerID, domain.TaskStatusCompleted)
		failedID := seedTask(t, taskStore, ownerID, domain.TaskStatusFailed)
		runningID := seedTask(t, taskStore, ownerID, domain.TaskStatusProcessing)
		foreignID := seedTask(t, taskStore, uuid.New(), domain.TaskStatusCompleted)
		missingID := uuid.New()

		svc, err := NewBulkService(taskStore, 2, testLogger())
		require.NoError(t, err)

		results, err := svc.DeleteTasks(context.Background(), ownerID,
			[]uuid.UUID{completedID, failedID, runningID, foreignID, missingID})
		require.NoError(t, err)
		require.Len(t, results, 5)

		byID := make(map[uuid.UUID]DeleteResult, len(results))
		for _, r := range results {
			byID[r.TaskID] = r
		}

		assert.True(t, byID[completedID].Deleted)
		assert.True(t, byID[failedID].Deleted)
		assert.False(t, byID[runningID].Deleted)
		assert.ErrorIs(t, byID[runningID].Err, ErrTaskStillRunning)
		assert.False(t, byID[foreignID].Deleted)
		assert.ErrorIs(t, byID[foreignID].Err, store.ErrTaskNotFound)
		assert.False(t, byID[missingID].Deleted)
		assert.ErrorIs(t, byID[missingID].Err, store.ErrTaskNotFound)

		// Deleted tasks are gone; the rest survive.
		_, err = taskStore.GetTask(context.Background(), completedID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
		_, err = taskStore.GetTask(context.Background(), runningID)
		assert.NoError(t, err)
		_, err = taskStore.GetTask(context.Background(), foreignID)
		assert.NoError(t, err)
	})

	t.Run("empty request succeeds with no results", func(t *testing.T) {
		t.Parallel()

		svc, err := NewBulkService(store.NewMemoryTaskStore(), 2, testLogger())
		require.NoError(t, err)

		results, err := svc.DeleteTasks(context.Background(), uuid.New(), nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
