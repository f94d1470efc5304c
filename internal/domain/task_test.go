package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	t.Parallel()

	t.Run("creates pending task with valid fields", func(t *testing.T) {
		t.Parallel()

		ownerID := uuid.New()
		task, err := NewTask(ownerID, "cloud_batch:report.pdf")

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, ownerID, task.OwnerID)
		assert.Equal(t, TaskStatusPending, task.Status)
		assert.Equal(t, 0, task.Progress)
		assert.False(t, task.CreatedAt.IsZero())
		assert.Equal(t, task.CreatedAt, task.UpdatedAt)
	})

	t.Run("rejects empty owner", func(t *testing.T) {
		t.Parallel()

		_, err := NewTask(uuid.Nil, "local:notes.txt")
		assert.ErrorIs(t, err, ErrEmptyTaskOwnerID)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		t.Parallel()

		_, err := NewTask(uuid.New(), "")
		assert.ErrorIs(t, err, ErrEmptyTaskName)
	})
}

func TestTaskValidate(t *testing.T) {
	t.Parallel()

	task, err := NewTask(uuid.New(), "vision:scan.pdf")
	require.NoError(t, err)

	t.Run("rejects out-of-range progress", func(t *testing.T) {
		t.Parallel()

		bad := *task
		bad.Progress = 101
		assert.ErrorIs(t, bad.Validate(), ErrInvalidProgress)

		bad.Progress = -1
		assert.ErrorIs(t, bad.Validate(), ErrInvalidProgress)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		t.Parallel()

		bad := *task
		bad.Status = TaskStatus("cancelled")
		assert.ErrorIs(t, bad.Validate(), ErrInvalidStatus)
	})
}

func TestTaskStatusTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from    TaskStatus
		to      TaskStatus
		allowed bool
	}{
		{TaskStatusPending, TaskStatusProcessing, true},
		{TaskStatusPending, TaskStatusCompleted, false},
		{TaskStatusPending, TaskStatusFailed, false},
		{TaskStatusProcessing, TaskStatusCompleted, true},
		{TaskStatusProcessing, TaskStatusFailed, true},
		{TaskStatusProcessing, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusProcessing, false},
		{TaskStatusCompleted, TaskStatusFailed, false},
		{TaskStatusFailed, TaskStatusProcessing, false},
		{TaskStatusFailed, TaskStatusCompleted, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"transition %s -> %s", tc.from, tc.to)
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusProcessing.IsTerminal())
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
}
