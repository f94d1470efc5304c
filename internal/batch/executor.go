// Package batch provides the bounded-concurrency executor shared by all
// bulk operations: batch deletes, per-page vision conversion, and any
// other fan-out over independent work items. At most limit workers run
// simultaneously, a failing item never aborts its siblings, and every
// completion produces exactly one progress callback.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Common executor errors
var (
	ErrInvalidLimit = errors.New("concurrency limit must be greater than zero")
	ErrNilWorker    = errors.New("worker function cannot be nil")
)

// ItemResult holds the outcome of one work item. Results correspond to
// items by index; no completion-order guarantee exists.
type ItemResult[R any] struct {
	Value R
	Err   error
}

// Outcome aggregates an executor run. When Cancelled is set, items that
// were never scheduled carry the context error and are excluded from
// the success/failure tallies.
type Outcome[R any] struct {
	Results      []ItemResult[R]
	SuccessCount int
	FailureCount int
	Cancelled    bool
}

// Attempted returns how many items were actually run.
func (o *Outcome[R]) Attempted() int {
	return o.SuccessCount + o.FailureCount
}

// ProgressFunc is invoked after every individual item completes, with
// the cumulative completed count and the fixed total. Calls are
// serialized by the executor.
type ProgressFunc func(completed, total int)

// RunAll processes items with at most limit concurrently in-flight
// worker invocations. Per-item failures (including panics) are recorded
// and never abort the remaining items. If ctx is cancelled, RunAll
// stops scheduling new items, lets in-flight items finish naturally,
// and returns a partial Outcome with Cancelled set.
func RunAll[T, R any](
	ctx context.Context,
	items []T,
	limit int,
	worker func(ctx context.Context, item T) (R, error),
	onProgress ProgressFunc,
) (*Outcome[R], error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	if worker == nil {
		return nil, ErrNilWorker
	}

	outcome := &Outcome[R]{
		Results: make([]ItemResult[R], len(items)),
	}
	if len(items) == 0 {
		return outcome, nil
	}

	// In-flight items run to completion even after cancellation; the
	// semaphore acquire is the only point that honors ctx.
	workerCtx := context.WithoutCancel(ctx)

	sem := semaphore.NewWeighted(int64(limit))
	total := len(items)

	var (
		mu        sync.Mutex
		completed int
		wg        sync.WaitGroup
	)

	scheduled := 0
	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled while waiting for a slot: stop
			// scheduling and mark the rest as never attempted.
			for j := i; j < total; j++ {
				outcome.Results[j].Err = err
			}
			outcome.Cancelled = true
			break
		}
		scheduled++

		wg.Add(1)
		go func(idx int, it T) {
			defer wg.Done()
			defer sem.Release(1)

			value, err := runItem(workerCtx, it, worker)

			mu.Lock()
			outcome.Results[idx] = ItemResult[R]{Value: value, Err: err}
			if err != nil {
				outcome.FailureCount++
			} else {
				outcome.SuccessCount++
			}
			completed++
			if onProgress != nil {
				onProgress(completed, total)
			}
			mu.Unlock()
		}(i, item)
	}

	wg.Wait()

	if outcome.Cancelled {
		return outcome, ctx.Err()
	}
	return outcome, nil
}

// runItem invokes the worker for one item, converting a panic into a
// per-item error so it cannot take down sibling items.
func runItem[T, R any](
	ctx context.Context,
	item T,
	worker func(ctx context.Context, item T) (R, error),
) (value R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("worker panicked: %v", rec)
		}
	}()
	return worker(ctx, item)
}
