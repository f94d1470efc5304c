package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/fenlow/curate-api/internal/batch"
	"github.com/fenlow/curate-api/internal/domain"
	"github.com/fenlow/curate-api/internal/platform/filestore"
	"github.com/fenlow/curate-api/internal/platform/vision"
	"github.com/fenlow/curate-api/internal/task"
)

// Vision strategy errors
var (
	// ErrNotVisionModel is returned when the selected model is not in
	// the vision-capable allow-list.
	ErrNotVisionModel = errors.New("selected model is not vision-capable")

	// ErrMissingAPIKey is returned when neither the request nor the
	// server configuration supplies an inference key.
	ErrMissingAPIKey = errors.New("vision conversion requires an API key")

	// ErrNoPages is returned when the source yields no page images.
	ErrNoPages = errors.New("source contains no pages to convert")

	// ErrAllPagesFailed is returned when every page conversion failed.
	ErrAllPagesFailed = errors.New("all page conversions failed")
)

// PageConverter performs one inference call per page.
type PageConverter interface {
	ConvertPage(ctx context.Context, model string, page vision.Page) (string, error)
}

// ConverterFactory builds a PageConverter authenticated with the given
// API key. Used so each task can carry its caller-supplied key.
type ConverterFactory func(ctx context.Context, apiKey string) (PageConverter, error)

// PageLoader splits a source into per-page conversion units.
type PageLoader interface {
	LoadPages(ctx context.Context, src Source) ([]vision.Page, error)
}

// VisionStrategy converts documents by fanning per-page inference calls
// through the bounded concurrency executor.
type VisionStrategy struct {
	newConverter  ConverterFactory
	pages         PageLoader
	files         *filestore.FileStore
	visionModels  []string
	defaultAPIKey string
	defaultLimit  int
	maxLimit      int
	logger        *slog.Logger
}

// VisionStrategyConfig collects the vision strategy's dependencies.
type VisionStrategyConfig struct {
	NewConverter  ConverterFactory
	Pages         PageLoader
	Files         *filestore.FileStore
	VisionModels  []string
	DefaultAPIKey string
	DefaultLimit  int
	MaxLimit      int
	Logger        *slog.Logger
}

// NewVisionStrategy creates the vision-LLM strategy.
func NewVisionStrategy(cfg VisionStrategyConfig) (*VisionStrategy, error) {
	if cfg.NewConverter == nil {
		return nil, fmt.Errorf("converter factory cannot be nil")
	}
	if cfg.Pages == nil {
		return nil, fmt.Errorf("page loader cannot be nil")
	}
	if cfg.Files == nil {
		return nil, fmt.Errorf("file store cannot be nil")
	}
	if len(cfg.VisionModels) == 0 {
		return nil, fmt.Errorf("vision model allow-list cannot be empty")
	}
	if cfg.DefaultLimit <= 0 || cfg.MaxLimit < cfg.DefaultLimit {
		return nil, fmt.Errorf("invalid concurrency limits: default %d, max %d", cfg.DefaultLimit, cfg.MaxLimit)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &VisionStrategy{
		newConverter:  cfg.NewConverter,
		pages:         cfg.Pages,
		files:         cfg.Files,
		visionModels:  cfg.VisionModels,
		defaultAPIKey: cfg.DefaultAPIKey,
		defaultLimit:  cfg.DefaultLimit,
		maxLimit:      cfg.MaxLimit,
		logger:        cfg.Logger,
	}, nil
}

// Kind returns the vision strategy discriminator.
func (s *VisionStrategy) Kind() domain.StrategyKind {
	return domain.StrategyVision
}

// Validate fails fast when the selected model is not vision-capable or
// no inference key is available. This runs before any task is created.
func (s *VisionStrategy) Validate(opts Options) error {
	if opts.Model == "" {
		return fmt.Errorf("%w: no model selected", ErrNotVisionModel)
	}
	if !slices.Contains(s.visionModels, opts.Model) {
		return fmt.Errorf("%w: %q (vision-capable: %s)",
			ErrNotVisionModel, opts.Model, strings.Join(s.visionModels, ", "))
	}
	if opts.APIKey == "" && s.defaultAPIKey == "" {
		return ErrMissingAPIKey
	}
	if opts.Concurrency < 0 {
		return fmt.Errorf("%w: %d", batch.ErrInvalidLimit, opts.Concurrency)
	}
	return nil
}

// Run fans per-page conversion through the executor, aggregates its
// progress into the task's progress channel, and assembles the page
// outputs into a single markdown artifact.
func (s *VisionStrategy) Run(ctx context.Context, src Source, opts Options, report task.ProgressFunc) error {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = s.defaultAPIKey
	}

	converter, err := s.newConverter(ctx, apiKey)
	if err != nil {
		return fmt.Errorf("failed to build page converter: %w", err)
	}

	pages, err := s.pages.LoadPages(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("%w: %s", ErrNoPages, src.FileName)
	}

	limit := s.limitFor(opts, len(pages))
	total := len(pages)

	s.logger.Info("starting vision conversion",
		"source", src.FileName,
		"model", opts.Model,
		"pages", total,
		"limit", limit)

	if err := report(ctx, 0, domain.VisionProgress{Model: opts.Model, Total: total}); err != nil {
		s.logger.Warn("failed to report initial progress", "error", err)
	}

	outcome, err := batch.RunAll(ctx, pages, limit,
		func(ctx context.Context, page vision.Page) (string, error) {
			return converter.ConvertPage(ctx, opts.Model, page)
		},
		func(completed, totalItems int) {
			if err := report(ctx, percent(completed, totalItems), domain.VisionProgress{
				Model:     opts.Model,
				Completed: completed,
				Total:     totalItems,
			}); err != nil {
				s.logger.Warn("failed to report page progress", "error", err)
			}
		})
	if err != nil {
		return fmt.Errorf("page fan-out aborted: %w", err)
	}

	if outcome.FailureCount == total {
		return fmt.Errorf("%w: %d pages", ErrAllPagesFailed, total)
	}

	markdown := assembleDocument(pages, outcome)
	outputPath, err := s.files.WriteMarkdown(src.OwnerID, src.FileName, markdown)
	if err != nil {
		return fmt.Errorf("failed to write markdown artifact: %w", err)
	}

	if err := report(ctx, 100, domain.VisionProgress{
		Model:     opts.Model,
		Completed: total,
		Total:     total,
		Failed:    outcome.FailureCount,
	}); err != nil {
		s.logger.Warn("failed to report final progress", "error", err)
	}

	s.logger.Info("vision conversion finished",
		"source", src.FileName,
		"output", outputPath,
		"failed_pages", outcome.FailureCount)

	return nil
}

// limitFor resolves the effective concurrency limit from the request
// override, the configured default, and the page count.
func (s *VisionStrategy) limitFor(opts Options, pageCount int) int {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	if limit > pageCount {
		limit = pageCount
	}
	return limit
}

// assembleDocument joins per-page outputs in page order. Failed pages
// become placeholder notes so the artifact stays usable.
func assembleDocument(pages []vision.Page, outcome *batch.Outcome[string]) []byte {
	var sb strings.Builder
	for i, result := range outcome.Results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if result.Err != nil {
			fmt.Fprintf(&sb, "<!-- page %d conversion failed: %v -->", pages[i].Number, result.Err)
			continue
		}
		sb.WriteString(result.Value)
	}
	sb.WriteString("\n")
	return []byte(sb.String())
}

// pageExtensions are the image types accepted as page sources.
var pageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// DirPageLoader loads page images from the filesystem: either a single
// image file or a directory of page images produced by the upload
// pipeline, ordered by file name.
type DirPageLoader struct{}

// LoadPages implements PageLoader.
func (DirPageLoader) LoadPages(ctx context.Context, src Source) ([]vision.Page, error) {
	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}

	if !info.IsDir() {
		page, err := loadPage(src.Path, 1)
		if err != nil {
			return nil, err
		}
		return []vision.Page{page}, nil
	}

	entries, err := os.ReadDir(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := pageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	pages := make([]vision.Page, 0, len(names))
	for i, name := range names {
		page, err := loadPage(filepath.Join(src.Path, name), i+1)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	return pages, nil
}

// loadPage reads one page image from disk.
func loadPage(path string, number int) (vision.Page, error) {
	mimeType, ok := pageExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return vision.Page{}, fmt.Errorf("unsupported page image type: %s", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return vision.Page{}, fmt.Errorf("failed to read page image: %w", err)
	}

	return vision.Page{Number: number, Data: data, MIMEType: mimeType}, nil
}
