// Package strategy implements the pluggable conversion strategies that
// drive a document-to-markdown job to completion. Each strategy builds
// the work function it hands to the task registry and reports progress
// exclusively through the registry's progress callback.
package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fenlow/curate-api/internal/domain"
	"github.com/fenlow/curate-api/internal/task"
)

// Common strategy errors
var (
	ErrNilStrategy       = errors.New("strategy cannot be nil")
	ErrDuplicateStrategy = errors.New("strategy kind registered twice")
)

// Source identifies the document a strategy converts.
type Source struct {
	OwnerID  uuid.UUID
	FileName string
	// Path is the resolved location of the uploaded source inside the
	// project's file area.
	Path string
}

// Options carries strategy-specific parameters from the create-task
// request's note object.
type Options struct {
	// Model selects the vision model; ignored by other strategies.
	Model string
	// APIKey authenticates vision inference calls. When empty the
	// server's configured key is used.
	APIKey string
	// Concurrency overrides the per-page fan-out limit; 0 means the
	// configured default.
	Concurrency int
}

// Strategy drives one external conversion backend to completion.
type Strategy interface {
	// Kind returns the strategy discriminator.
	Kind() domain.StrategyKind

	// Validate fails fast on bad options before any task is created.
	Validate(opts Options) error

	// Run performs the conversion, reporting progress through report.
	// A returned error is the task's terminal failure.
	Run(ctx context.Context, src Source, opts Options, report task.ProgressFunc) error
}

// Set is the registered-variant dispatch over the known strategies.
type Set struct {
	strategies map[domain.StrategyKind]Strategy
}

// NewSet builds a Set from the given strategies.
func NewSet(strategies ...Strategy) (*Set, error) {
	m := make(map[domain.StrategyKind]Strategy, len(strategies))
	for _, s := range strategies {
		if s == nil {
			return nil, ErrNilStrategy
		}
		if _, exists := m[s.Kind()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStrategy, s.Kind())
		}
		m[s.Kind()] = s
	}
	return &Set{strategies: m}, nil
}

// Get returns the strategy registered for the given kind.
func (s *Set) Get(kind domain.StrategyKind) (Strategy, error) {
	strat, ok := s.strategies[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownStrategy, kind)
	}
	return strat, nil
}

// percent converts a unit count into a whole percentage, defaulting to
// 0 when the total is unknown.
func percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return current * 100 / total
}
