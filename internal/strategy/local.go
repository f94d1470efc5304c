package strategy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fenlow/curate-api/internal/domain"
	"github.com/fenlow/curate-api/internal/platform/filestore"
	"github.com/fenlow/curate-api/internal/task"
)

// LocalStrategy converts text-like sources synchronously in-process.
// It never suspends; the single progress report lands at 100%.
type LocalStrategy struct {
	files  *filestore.FileStore
	logger *slog.Logger
}

// NewLocalStrategy creates the in-process conversion strategy.
func NewLocalStrategy(files *filestore.FileStore, logger *slog.Logger) (*LocalStrategy, error) {
	if files == nil {
		return nil, fmt.Errorf("file store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &LocalStrategy{files: files, logger: logger}, nil
}

// Kind returns the local strategy discriminator.
func (s *LocalStrategy) Kind() domain.StrategyKind {
	return domain.StrategyLocal
}

// Validate accepts any options; the local strategy has no parameters.
func (s *LocalStrategy) Validate(opts Options) error {
	return nil
}

// Run reads the source, normalizes it to markdown, and writes the
// artifact into the project's file area.
func (s *LocalStrategy) Run(ctx context.Context, src Source, opts Options, report task.ProgressFunc) error {
	content, err := os.ReadFile(src.Path)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}

	outputPath, err := s.files.WriteMarkdown(src.OwnerID, src.FileName, normalizeMarkdown(content))
	if err != nil {
		return fmt.Errorf("failed to write markdown artifact: %w", err)
	}

	s.logger.Debug("local conversion finished",
		"source", src.FileName,
		"output", outputPath)

	return report(ctx, 100, domain.LocalProgress{
		SourceFile: src.FileName,
		OutputPath: outputPath,
	})
}

// normalizeMarkdown strips a UTF-8 BOM, normalizes line endings, and
// ensures a trailing newline.
func normalizeMarkdown(content []byte) []byte {
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	content = bytes.ReplaceAll(content, []byte("\r"), []byte("\n"))
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, '\n')
	}
	return content
}
