// Package filestore manages the local file area where converted
// markdown artifacts are written, one subdirectory per project.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Common filestore errors
var (
	ErrEmptyDataDir  = errors.New("data directory cannot be empty")
	ErrEmptyFileName = errors.New("file name cannot be empty")
)

// FileStore writes conversion artifacts under a fixed data directory.
type FileStore struct {
	dataDir string
}

// New creates a FileStore rooted at dataDir, creating the directory if
// it does not exist.
func New(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		return nil, ErrEmptyDataDir
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// WriteMarkdown stores a converted document for the given project and
// returns the path it was written to. The name is flattened to its base
// so callers cannot escape the project directory.
func (f *FileStore) WriteMarkdown(ownerID uuid.UUID, name string, content []byte) (string, error) {
	if name == "" {
		return "", ErrEmptyFileName
	}

	base := filepath.Base(name)
	if !strings.HasSuffix(base, ".md") {
		base = strings.TrimSuffix(base, filepath.Ext(base)) + ".md"
	}

	dir := filepath.Join(f.dataDir, ownerID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create project directory: %w", err)
	}

	path := filepath.Join(dir, base)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write markdown file: %w", err)
	}

	return path, nil
}

// SourcePath resolves an uploaded source file inside the project's
// file area. It rejects names that would escape the project directory.
func (f *FileStore) SourcePath(ownerID uuid.UUID, name string) (string, error) {
	if name == "" {
		return "", ErrEmptyFileName
	}

	base := filepath.Base(name)
	if base != name {
		return "", fmt.Errorf("invalid source file name %q", name)
	}

	return filepath.Join(f.dataDir, ownerID.String(), base), nil
}
