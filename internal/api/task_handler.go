package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fenlow/curate-api/internal/api/middleware"
	"github.com/fenlow/curate-api/internal/api/shared"
	"github.com/fenlow/curate-api/internal/domain"
	"github.com/fenlow/curate-api/internal/service"
	"github.com/fenlow/curate-api/internal/strategy"
)

// TaskHandler exposes the asynchronous conversion task endpoints.
type TaskHandler struct {
	conversions *service.ConversionService
	bulk        *service.BulkService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(
	conversions *service.ConversionService,
	bulk *service.BulkService,
	logger *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		conversions: conversions,
		bulk:        bulk,
		logger:      logger,
	}
}

// CreateTask handles POST /api/tasks. The conversion runs in the
// background; the 202 response carries the task ID to poll.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	projectID, ok := middleware.GetProjectID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: strategy and file_name are required")
		return
	}

	kind, err := domain.ParseStrategyKind(req.Strategy)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	taskID, err := h.conversions.Process(r.Context(), projectID, kind, req.FileName, strategy.Options{
		Model:       req.Note.Model,
		APIKey:      req.Note.APIKey,
		Concurrency: req.Note.Concurrency,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, CreateTaskResponse{TaskID: taskID})
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	projectID, ok := middleware.GetProjectID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := h.conversions.GetTask(r.Context(), projectID, taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toTaskResponse(task))
}

// ListTasks handles GET /api/tasks. An optional status query parameter
// filters the result.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	projectID, ok := middleware.GetProjectID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	status := domain.TaskStatus(r.URL.Query().Get("status"))

	tasks, err := h.conversions.ListTasks(r.Context(), projectID, status)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := TaskListResponse{Tasks: make([]TaskResponse, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, toTaskResponse(t))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// BatchDelete handles POST /api/tasks/batch-delete. Each task succeeds
// or fails independently; the response reports both tallies.
func (h *TaskHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := middleware.GetProjectID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req BatchDeleteRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: task_ids must hold between 1 and 100 IDs")
		return
	}

	results, err := h.bulk.DeleteTasks(r.Context(), projectID, req.TaskIDs)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := BatchDeleteResponse{Results: make([]BatchDeleteItem, 0, len(results))}
	for _, res := range results {
		item := BatchDeleteItem{TaskID: res.TaskID, Deleted: res.Deleted}
		if res.Err != nil {
			item.Error = GetSafeErrorMessage(res.Err)
			resp.Failed++
		} else {
			resp.Deleted++
		}
		resp.Results = append(resp.Results, item)
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
