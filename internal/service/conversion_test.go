package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenlow/curate-api/internal/domain"
	"github.com/fenlow/curate-api/internal/platform/filestore"
	"github.com/fenlow/curate-api/internal/store"
	"github.com/fenlow/curate-api/internal/strategy"
	"github.com/fenlow/curate-api/internal/task"
)

// stubStrategy is a configurable in-memory strategy.
type stubStrategy struct {
	kind       domain.StrategyKind
	validateFn func(opts strategy.Options) error
	runFn      func(ctx context.Context, src strategy.Source, opts strategy.Options, report task.ProgressFunc) error
}

func (s *stubStrategy) Kind() domain.StrategyKind { return s.kind }

func (s *stubStrategy) Validate(opts strategy.Options) error {
	if s.validateFn == nil {
		return nil
	}
	return s.validateFn(opts)
}

func (s *stubStrategy) Run(ctx context.Context, src strategy.Source, opts strategy.Options, report task.ProgressFunc) error {
	if s.runFn == nil {
		return nil
	}
	return s.runFn(ctx, src, opts, report)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type conversionFixture struct {
	svc      *ConversionService
	registry *task.Registry
	files    *filestore.FileStore
	dataDir  string
}

func newConversionFixture(t *testing.T, strategies ...strategy.Strategy) *conversionFixture {
	t.Helper()

	dataDir := t.TempDir()
	files, err := filestore.New(dataDir)
	require.NoError(t, err)

	registry, err := task.NewRegistry(store.NewMemoryTaskStore(), testLogger())
	require.NoError(t, err)

	set, err := strategy.NewSet(strategies...)
	require.NoError(t, err)

	svc, err := NewConversionService(registry, set, files, testLogger())
	require.NoError(t, err)

	return &conversionFixture{svc: svc, registry: registry, files: files, dataDir: dataDir}
}

// putSource drops an uploaded source into the owner's file area.
func (f *conversionFixture) putSource(t *testing.T, ownerID uuid.UUID, name, content string) {
	t.Helper()
	dir := filepath.Join(f.dataDir, ownerID.String())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// waitForTerminal polls until the task reaches a terminal status.
func waitForTerminal(t *testing.T, registry *task.Registry, taskID uuid.UUID) *domain.Task {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		got, err := registry.GetTask(context.Background(), taskID)
		require.NoError(t, err)
		if got.Status.IsTerminal() {
			return got
		}

		select {
		case <-deadline:
			t.Fatalf("task %s never reached a terminal status (last: %s)", taskID, got.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestConversionServiceProcess(t *testing.T) {
	t.Parallel()

	t.Run("starts task and runs conversion to completion", func(t *testing.T) {
		t.Parallel()

		ownerID := uuid.New()
		ran := make(chan strategy.Source, 1)
		stub := &stubStrategy{
			kind: domain.StrategyLocal,
			runFn: func(ctx context.Context, src strategy.Source, _ strategy.Options, report task.ProgressFunc) error {
				ran <- src
				return report(ctx, 100, domain.LocalProgress{SourceFile: src.FileName})
			},
		}

		f := newConversionFixture(t, stub)
		f.putSource(t, ownerID, "notes.txt", "content")

		taskID, err := f.svc.Process(context.Background(), ownerID, domain.StrategyLocal, "notes.txt", strategy.Options{})
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, taskID)

		got := waitForTerminal(t, f.registry, taskID)
		assert.Equal(t, domain.TaskStatusCompleted, got.Status)
		assert.Equal(t, 100, got.Progress)
		assert.Equal(t, "local:notes.txt", got.Name)

		src := <-ran
		assert.Equal(t, ownerID, src.OwnerID)
		assert.Equal(t, "notes.txt", src.FileName)
		assert.Equal(t, filepath.Join(f.dataDir, ownerID.String(), "notes.txt"), src.Path)
	})

	t.Run("strategy failure marks the task failed", func(t *testing.T) {
		t.Parallel()

		ownerID := uuid.New()
		stub := &stubStrategy{
			kind: domain.StrategyLocal,
			runFn: func(context.Context, strategy.Source, strategy.Options, task.ProgressFunc) error {
				return errors.New("backend unavailable")
			},
		}

		f := newConversionFixture(t, stub)
		f.putSource(t, ownerID, "notes.txt", "content")

		taskID, err := f.svc.Process(context.Background(), ownerID, domain.StrategyLocal, "notes.txt", strategy.Options{})
		require.NoError(t, err)

		got := waitForTerminal(t, f.registry, taskID)
		assert.Equal(t, domain.TaskStatusFailed, got.Status)
		assert.Contains(t, got.Error, "backend unavailable")
	})

	t.Run("unknown strategy creates no task", func(t *testing.T) {
		t.Parallel()

		ownerID := uuid.New()
		f := newConversionFixture(t, &stubStrategy{kind: domain.StrategyLocal})
		f.putSource(t, ownerID, "notes.txt", "content")

		_, err := f.svc.Process(context.Background(), ownerID, domain.StrategyVision, "notes.txt", strategy.Options{})
		require.ErrorIs(t, err, domain.ErrUnknownStrategy)

		tasks, err := f.svc.ListTasks(context.Background(), ownerID, "")
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("validation failure creates no task", func(t *testing.T) {
		t.Parallel()

		ownerID := uuid.New()
		stub := &stubStrategy{
			kind: domain.StrategyVision,
			validateFn: func(strategy.Options) error {
				return errors.New("model is not vision-capable")
			},
		}

		f := newConversionFixture(t, stub)
		f.putSource(t, ownerID, "scan.pdf", "content")

		_, err := f.svc.Process(context.Background(), ownerID, domain.StrategyVision, "scan.pdf", strategy.Options{})
		require.ErrorIs(t, err, domain.ErrValidation)

		tasks, err := f.svc.ListTasks(context.Background(), ownerID, "")
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("missing source file is rejected", func(t *testing.T) {
		t.Parallel()

		f := newConversionFixture(t, &stubStrategy{kind: domain.StrategyLocal})
		_, err := f.svc.Process(context.Background(), uuid.New(), domain.StrategyLocal, "ghost.txt", strategy.Options{})
		assert.ErrorIs(t, err, ErrSourceNotFound)
	})

	t.Run("path traversal in file name is rejected", func(t *testing.T) {
		t.Parallel()

		f := newConversionFixture(t, &stubStrategy{kind: domain.StrategyLocal})
		_, err := f.svc.Process(context.Background(), uuid.New(), domain.StrategyLocal, "../etc/passwd", strategy.Options{})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestConversionServiceReads(t *testing.T) {
	t.Parallel()

	t.Run("get task is owner scoped", func(t *testing.T) {
		t.Parallel()

		ownerID := uuid.New()
		stub := &stubStrategy{kind: domain.StrategyLocal}
		f := newConversionFixture(t, stub)
		f.putSource(t, ownerID, "notes.txt", "content")

		taskID, err := f.svc.Process(context.Background(), ownerID, domain.StrategyLocal, "notes.txt", strategy.Options{})
		require.NoError(t, err)
		waitForTerminal(t, f.registry, taskID)

		got, err := f.svc.GetTask(context.Background(), ownerID, taskID)
		require.NoError(t, err)
		assert.Equal(t, taskID, got.ID)

		_, err = f.svc.GetTask(context.Background(), uuid.New(), taskID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("list rejects unknown status filter", func(t *testing.T) {
		t.Parallel()

		f := newConversionFixture(t, &stubStrategy{kind: domain.StrategyLocal})
		_, err := f.svc.ListTasks(context.Background(), uuid.New(), domain.TaskStatus("sleeping"))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
