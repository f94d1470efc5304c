// Package docbatch implements the HTTP client for the cloud batch
// conversion vendor: create a batch to obtain an upload slot, upload
// the source document, poll the batch status, and fetch the result
// archive once the remote job reports done.
package docbatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Remote batch states reported by the vendor. Any other value is an
// in-progress state.
const (
	StateWaiting = "waiting"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// Common client errors
var (
	ErrEmptyBaseURL  = errors.New("doc batch base URL cannot be empty")
	ErrEmptyToken    = errors.New("doc batch token cannot be empty")
	ErrEmptyFileName = errors.New("file name cannot be empty")
	ErrEmptyBatchID  = errors.New("batch ID cannot be empty")
)

// maxArchiveBytes caps result archive downloads. Vendor archives for a
// single document stay well under this.
const maxArchiveBytes = 512 << 20

// BatchStatus is the vendor's view of a conversion job.
type BatchStatus struct {
	BatchID   string `json:"batch_id"`
	State     string `json:"state"`
	Extracted int    `json:"extracted_pages"`
	Total     int    `json:"total_pages"`
	ZipURL    string `json:"full_zip_url"`
	ErrMsg    string `json:"err_msg"`
}

// InProgress reports whether the remote job has not yet reached a
// terminal state.
func (s *BatchStatus) InProgress() bool {
	return s.State != StateDone && s.State != StateFailed
}

// Client talks to the cloud batch conversion service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a vendor client. The base URL and bearer token come
// from configuration and must be non-empty.
func NewClient(baseURL, token string, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if token == "" {
		return nil, ErrEmptyToken
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}, nil
}

// createBatchResponse is the vendor reply to a batch submission.
type createBatchResponse struct {
	BatchID   string `json:"batch_id"`
	UploadURL string `json:"upload_url"`
}

// CreateBatch requests an upload slot for the named file and returns
// the new batch ID together with the presigned upload URL.
func (c *Client) CreateBatch(ctx context.Context, fileName string) (batchID, uploadURL string, err error) {
	if fileName == "" {
		return "", "", ErrEmptyFileName
	}

	body, err := json.Marshal(map[string]string{"file_name": fileName})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/batches", bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("batch submission failed: %w", err)
	}
	defer closeBody(resp.Body, c.logger)

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("batch submission returned status %d", resp.StatusCode)
	}

	var parsed createBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", fmt.Errorf("failed to decode batch response: %w", err)
	}
	if parsed.BatchID == "" || parsed.UploadURL == "" {
		return "", "", errors.New("batch response missing batch ID or upload URL")
	}

	c.logger.Debug("batch created", "batch_id", parsed.BatchID, "file_name", fileName)
	return parsed.BatchID, parsed.UploadURL, nil
}

// Upload streams the source document to the presigned upload URL.
func (c *Client) Upload(ctx context.Context, uploadURL string, source io.Reader) error {
	if uploadURL == "" {
		return errors.New("upload URL cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, source)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer closeBody(resp.Body, c.logger)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}

	return nil
}

// GetBatch polls the status of a previously created batch.
func (c *Client) GetBatch(ctx context.Context, batchID string) (*BatchStatus, error) {
	if batchID == "" {
		return nil, ErrEmptyBatchID
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/batches/"+batchID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status poll failed: %w", err)
	}
	defer closeBody(resp.Body, c.logger)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status poll returned status %d", resp.StatusCode)
	}

	var status BatchStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode batch status: %w", err)
	}
	if status.BatchID == "" {
		status.BatchID = batchID
	}

	return &status, nil
}

// FetchArchive downloads the result archive for a finished batch.
func (c *Client) FetchArchive(ctx context.Context, zipURL string) ([]byte, error) {
	if zipURL == "" {
		return nil, errors.New("archive URL cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, zipURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build archive request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive download failed: %w", err)
	}
	defer closeBody(resp.Body, c.logger)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive body: %w", err)
	}

	return data, nil
}

// closeBody drains and closes a response body so the connection can be
// reused.
func closeBody(body io.ReadCloser, logger *slog.Logger) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	if err := body.Close(); err != nil {
		logger.Debug("failed to close response body", "error", err)
	}
}
