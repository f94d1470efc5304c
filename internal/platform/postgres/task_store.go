package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fenlow/curate-api/internal/domain"
	"github.com/fenlow/curate-api/internal/platform/logger"
	"github.com/fenlow/curate-api/internal/store"
)

// PostgresTaskStore implements store.TaskStore using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// Ensure PostgresTaskStore implements store.TaskStore
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// CreateTask persists a new task.
func (s *PostgresTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, name, owner_id, status, progress, message, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Name,
		task.OwnerID,
		task.Status,
		task.Progress,
		nullableJSON(task.Message),
		task.Error,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			"task_id", task.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetTask retrieves a task by ID.
func (s *PostgresTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, name, owner_id, status, progress, message, error_message, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	return task, nil
}

// ListTasks retrieves an owner's tasks, newest first, optionally
// filtered by status.
func (s *PostgresTaskStore) ListTasks(
	ctx context.Context,
	ownerID uuid.UUID,
	status domain.TaskStatus,
) ([]*domain.Task, error) {
	query := `
		SELECT id, name, owner_id, status, progress, message, error_message, created_at, updated_at
		FROM tasks
		WHERE owner_id = $1
	`
	args := []any{ownerID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return tasks, nil
}

// UpdateTaskStatus sets the task's status and, for failed tasks, the
// error message.
func (s *PostgresTaskStore) UpdateTaskStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	errorMsg string,
) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, status, errorMsg, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update task status",
			"task_id", id,
			"status", status,
			"error", err)
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "task"); err != nil {
		return store.ErrTaskNotFound
	}
	return nil
}

// UpdateTaskProgress sets the task's progress percentage and message
// payload.
func (s *PostgresTaskStore) UpdateTaskProgress(
	ctx context.Context,
	id uuid.UUID,
	progress int,
	message json.RawMessage,
) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET progress = $1, message = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, progress, nullableJSON(message), time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update task progress",
			"task_id", id,
			"progress", progress,
			"error", err)
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "task"); err != nil {
		return store.ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task.
func (s *PostgresTaskStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "task"); err != nil {
		return store.ErrTaskNotFound
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask maps one result row into a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task     domain.Task
		message  []byte
		errorMsg sql.NullString
	)

	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.OwnerID,
		&task.Status,
		&task.Progress,
		&message,
		&errorMsg,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(message) > 0 {
		task.Message = json.RawMessage(message)
	}
	if errorMsg.Valid {
		task.Error = errorMsg.String
	}

	return &task, nil
}

// nullableJSON maps an empty payload to SQL NULL so the jsonb column
// never stores an empty string.
func nullableJSON(message json.RawMessage) any {
	if len(message) == 0 {
		return nil
	}
	return []byte(message)
}
