package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fenlow/curate-api/internal/domain"
)

// TokenRequest exchanges the service API key for a project-scoped JWT.
type TokenRequest struct {
	APIKey    string `json:"api_key"    validate:"required"`
	ProjectID string `json:"project_id" validate:"required,uuid"`
}

// TokenResponse carries the issued bearer token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // Seconds until expiry
}

// ConversionNote carries optional strategy-specific parameters of a
// create-task request.
type ConversionNote struct {
	Model       string `json:"model,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
	Concurrency int    `json:"concurrency,omitempty" validate:"gte=0"`
}

// CreateTaskRequest starts an asynchronous conversion of an uploaded
// source file.
type CreateTaskRequest struct {
	Strategy string         `json:"strategy"  validate:"required"`
	FileName string         `json:"file_name" validate:"required"`
	Note     ConversionNote `json:"note"`
}

// CreateTaskResponse acknowledges an accepted conversion.
type CreateTaskResponse struct {
	TaskID uuid.UUID `json:"task_id"`
}

// TaskResponse is the polled view of a conversion task.
type TaskResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Status    string          `json:"status"`
	Progress  int             `json:"progress"`
	Message   json.RawMessage `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TaskListResponse wraps a task listing.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

// BatchDeleteRequest removes a set of the project's terminal tasks.
type BatchDeleteRequest struct {
	TaskIDs []uuid.UUID `json:"task_ids" validate:"required,min=1,max=100"`
}

// BatchDeleteItem reports the per-task outcome of a bulk delete.
type BatchDeleteItem struct {
	TaskID  uuid.UUID `json:"task_id"`
	Deleted bool      `json:"deleted"`
	Error   string    `json:"error,omitempty"`
}

// BatchDeleteResponse summarizes a bulk delete.
type BatchDeleteResponse struct {
	Deleted int               `json:"deleted"`
	Failed  int               `json:"failed"`
	Results []BatchDeleteItem `json:"results"`
}

// toTaskResponse maps a domain task onto its API representation.
func toTaskResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		Name:      t.Name,
		Status:    string(t.Status),
		Progress:  t.Progress,
		Message:   t.Message,
		Error:     t.Error,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
