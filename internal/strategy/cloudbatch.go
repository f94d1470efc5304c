package strategy

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fenlow/curate-api/internal/domain"
	"github.com/fenlow/curate-api/internal/platform/docbatch"
	"github.com/fenlow/curate-api/internal/platform/filestore"
	"github.com/fenlow/curate-api/internal/task"
)

// Cloud batch strategy errors
var (
	// ErrPollTimeout is returned when the poll attempt budget is
	// exhausted before the remote job reaches a terminal state.
	ErrPollTimeout = errors.New("timed out waiting for remote job")

	// ErrRemoteFailed is returned when the vendor reports a failed
	// conversion.
	ErrRemoteFailed = errors.New("remote conversion failed")

	// ErrNoMarkdownInArchive is returned when the result archive holds
	// no markdown artifact.
	ErrNoMarkdownInArchive = errors.New("result archive contains no markdown file")
)

// maxArchiveEntryBytes bounds how much of a single archive entry is
// read during extraction.
const maxArchiveEntryBytes = 64 << 20

// BatchClient is the vendor surface the strategy drives. Satisfied by
// *docbatch.Client.
type BatchClient interface {
	CreateBatch(ctx context.Context, fileName string) (batchID, uploadURL string, err error)
	Upload(ctx context.Context, uploadURL string, source io.Reader) error
	GetBatch(ctx context.Context, batchID string) (*docbatch.BatchStatus, error)
	FetchArchive(ctx context.Context, zipURL string) ([]byte, error)
}

// CloudBatchStrategy converts documents through the vendor's hosted
// batch pipeline: submit, upload, poll to a terminal state, then unpack
// the markdown artifact from the result archive.
type CloudBatchStrategy struct {
	client          BatchClient
	files           *filestore.FileStore
	pollInterval    time.Duration
	maxPollAttempts int
	logger          *slog.Logger
}

// NewCloudBatchStrategy creates the cloud batch strategy. The poll
// interval and attempt budget bound the worst-case task runtime.
func NewCloudBatchStrategy(
	client BatchClient,
	files *filestore.FileStore,
	pollInterval time.Duration,
	maxPollAttempts int,
	logger *slog.Logger,
) (*CloudBatchStrategy, error) {
	if client == nil {
		return nil, fmt.Errorf("batch client cannot be nil")
	}
	if files == nil {
		return nil, fmt.Errorf("file store cannot be nil")
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if maxPollAttempts <= 0 {
		return nil, fmt.Errorf("max poll attempts must be positive")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &CloudBatchStrategy{
		client:          client,
		files:           files,
		pollInterval:    pollInterval,
		maxPollAttempts: maxPollAttempts,
		logger:          logger,
	}, nil
}

// Kind returns the cloud batch strategy discriminator.
func (s *CloudBatchStrategy) Kind() domain.StrategyKind {
	return domain.StrategyCloudBatch
}

// Validate accepts any options; credentials come from server config.
func (s *CloudBatchStrategy) Validate(opts Options) error {
	return nil
}

// Run drives the remote job: submit, upload, poll, finalize. Every
// return path leaves no poll ticker running.
func (s *CloudBatchStrategy) Run(ctx context.Context, src Source, opts Options, report task.ProgressFunc) error {
	logger := s.logger.With("source", src.FileName, "owner_id", src.OwnerID)

	source, err := os.Open(src.Path)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.Debug("failed to close source file", "error", err)
		}
	}()

	batchID, uploadURL, err := s.client.CreateBatch(ctx, src.FileName)
	if err != nil {
		return fmt.Errorf("failed to create remote batch: %w", err)
	}
	logger = logger.With("batch_id", batchID)

	if err := s.client.Upload(ctx, uploadURL, source); err != nil {
		return fmt.Errorf("failed to upload source: %w", err)
	}
	logger.Info("source uploaded, polling remote job")

	status, err := s.poll(ctx, batchID, report)
	if err != nil {
		return err
	}

	if err := report(ctx, 100, domain.CloudBatchProgress{
		BatchID:   batchID,
		State:     status.State,
		Extracted: status.Extracted,
		Total:     status.Total,
		ZipURL:    status.ZipURL,
	}); err != nil {
		logger.Warn("failed to report final progress", "error", err)
	}

	if err := s.finalize(ctx, src, status); err != nil {
		return err
	}

	logger.Info("cloud batch conversion finished", "pages", status.Total)
	return nil
}

// poll watches the remote job until it reaches a terminal state or the
// attempt budget is exhausted. The ticker is stopped on every path.
func (s *CloudBatchStrategy) poll(
	ctx context.Context,
	batchID string,
	report task.ProgressFunc,
) (*docbatch.BatchStatus, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < s.maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("polling cancelled: %w", ctx.Err())
		case <-ticker.C:
		}

		status, err := s.client.GetBatch(ctx, batchID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll remote job: %w", err)
		}

		switch status.State {
		case docbatch.StateDone:
			return status, nil
		case docbatch.StateFailed:
			msg := status.ErrMsg
			if msg == "" {
				msg = "vendor reported failure without detail"
			}
			return nil, fmt.Errorf("%w: %s", ErrRemoteFailed, msg)
		default:
			if err := report(ctx, percent(status.Extracted, status.Total), domain.CloudBatchProgress{
				BatchID:   batchID,
				State:     status.State,
				Extracted: status.Extracted,
				Total:     status.Total,
			}); err != nil {
				s.logger.Warn("failed to report poll progress",
					"batch_id", batchID,
					"error", err)
			}
		}
	}

	return nil, fmt.Errorf("%w: batch %s after %d attempts", ErrPollTimeout, batchID, s.maxPollAttempts)
}

// finalize downloads the result archive and extracts the markdown
// artifact into the project's file area.
func (s *CloudBatchStrategy) finalize(ctx context.Context, src Source, status *docbatch.BatchStatus) error {
	if status.ZipURL == "" {
		return errors.New("remote job finished without a result archive")
	}

	archive, err := s.client.FetchArchive(ctx, status.ZipURL)
	if err != nil {
		return fmt.Errorf("failed to download result archive: %w", err)
	}

	markdown, err := extractMarkdown(archive)
	if err != nil {
		return err
	}

	if _, err := s.files.WriteMarkdown(src.OwnerID, src.FileName, markdown); err != nil {
		return fmt.Errorf("failed to write markdown artifact: %w", err)
	}

	return nil
}

// extractMarkdown pulls the first markdown entry out of the result
// archive. The vendor packages exactly one per source document.
func extractMarkdown(archive []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("failed to open result archive: %w", err)
	}

	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !strings.HasSuffix(file.Name, ".md") {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive entry %s: %w", file.Name, err)
		}

		content, err := io.ReadAll(io.LimitReader(rc, maxArchiveEntryBytes))
		closeErr := rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry %s: %w", file.Name, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("failed to close archive entry %s: %w", file.Name, closeErr)
		}

		return content, nil
	}

	return nil, ErrNoMarkdownInArchive
}
