package docbatch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(server.URL, "vendor-token", logger)
	require.NoError(t, err)
	return client, server
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewClient("", "token", logger)
	assert.ErrorIs(t, err, ErrEmptyBaseURL)

	_, err = NewClient("https://batch.example.com", "", logger)
	assert.ErrorIs(t, err, ErrEmptyToken)

	_, err = NewClient("https://batch.example.com", "token", nil)
	assert.Error(t, err)
}

func TestCreateBatch(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/batches", r.URL.Path)
			assert.Equal(t, "Bearer vendor-token", r.Header.Get("Authorization"))

			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"file_name":"report.pdf"}`, string(body))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"batch_id":"b-1","upload_url":"https://upload.example.com/b-1"}`))
		}))

		batchID, uploadURL, err := client.CreateBatch(context.Background(), "report.pdf")
		require.NoError(t, err)
		assert.Equal(t, "b-1", batchID)
		assert.Equal(t, "https://upload.example.com/b-1", uploadURL)
	})

	t.Run("empty file name", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.NotFoundHandler())
		_, _, err := client.CreateBatch(context.Background(), "")
		assert.ErrorIs(t, err, ErrEmptyFileName)
	})

	t.Run("vendor error status", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		_, _, err := client.CreateBatch(context.Background(), "report.pdf")
		assert.ErrorContains(t, err, "502")
	})

	t.Run("missing fields in response", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"batch_id":""}`))
		}))

		_, _, err := client.CreateBatch(context.Background(), "report.pdf")
		assert.ErrorContains(t, err, "missing batch ID")
	})
}

func TestUpload(t *testing.T) {
	t.Parallel()

	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient("https://batch.example.com", "token", logger)
	require.NoError(t, err)

	err = client.Upload(context.Background(), server.URL+"/upload", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(received))
}

func TestGetBatch(t *testing.T) {
	t.Parallel()

	t.Run("running state", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/batches/b-7", r.URL.Path)
			_, _ = w.Write([]byte(`{"state":"running","extracted_pages":3,"total_pages":10}`))
		}))

		status, err := client.GetBatch(context.Background(), "b-7")
		require.NoError(t, err)
		assert.Equal(t, StateRunning, status.State)
		assert.Equal(t, 3, status.Extracted)
		assert.Equal(t, 10, status.Total)
		assert.True(t, status.InProgress())
		assert.Equal(t, "b-7", status.BatchID)
	})

	t.Run("done state", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"state":"done","extracted_pages":10,"total_pages":10,"full_zip_url":"https://cdn.example.com/b.zip"}`))
		}))

		status, err := client.GetBatch(context.Background(), "b-7")
		require.NoError(t, err)
		assert.False(t, status.InProgress())
		assert.Equal(t, "https://cdn.example.com/b.zip", status.ZipURL)
	})

	t.Run("empty batch ID", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.NotFoundHandler())
		_, err := client.GetBatch(context.Background(), "")
		assert.ErrorIs(t, err, ErrEmptyBatchID)
	})
}

func TestFetchArchive(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("zip-bytes"))
	}))
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient("https://batch.example.com", "token", logger)
	require.NoError(t, err)

	data, err := client.FetchArchive(context.Background(), server.URL+"/b.zip")
	require.NoError(t, err)
	assert.Equal(t, []byte("zip-bytes"), data)
}
