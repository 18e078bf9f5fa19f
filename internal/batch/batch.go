// Package batch drives population-wide passes: pagination, chunking and
// bounded worker pools with per-unit failure containment.
//
// A failing unit is logged and counted, never allowed to abort the rest of
// the population; the caller's next scheduled run retries it wholesale.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/rankforge/pkg/logger"
	"github.com/okian/rankforge/pkg/metrics"
)

// Report summarizes a batch run.
type Report struct {
	Processed int
	Skipped   int
	Failed    int
}

// Add merges another report into this one.
func (r *Report) Add(other Report) {
	r.Processed += other.Processed
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

// Chunks partitions items into windows of at most size elements. The last
// chunk may be shorter. A non-positive size yields a single chunk.
func Chunks[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// Pages streams fixed-size windows from fetch until it returns an empty
// page, invoking handle per page. The collection is never materialized.
func Pages[T any](ctx context.Context, size int, fetch func(ctx context.Context, offset, limit int) ([]T, error), handle func(ctx context.Context, page []T) error) error {
	for offset := 0; ; offset += size {
		page, err := fetch(ctx, offset, size)
		if err != nil {
			return fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			return nil
		}
		if err := handle(ctx, page); err != nil {
			return fmt.Errorf("handle page at offset %d: %w", offset, err)
		}
	}
}

// UnitFunc processes one unit of work.
type UnitFunc[T any] func(ctx context.Context, unit T) error

// Runner executes units with containment and reporting.
type Runner struct {
	logger logger.Logger
}

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithLogger sets a custom logger for the runner.
func WithLogger(log logger.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.logger = log
		}
	}
}

// NewRunner creates a Runner with configuration options.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger: logger.Get().Named("batch"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run processes units sequentially.
func Run[T any](ctx context.Context, r *Runner, units []T, fn UnitFunc[T]) Report {
	var report Report
	for _, unit := range units {
		if ctx.Err() != nil {
			report.Skipped += countRemaining(len(units), report)
			return report
		}
		process(ctx, r, unit, fn, &report, nil)
	}
	return report
}

// RunPool processes units on a bounded goroutine pool sharing the caller's
// resources. The work channel bounds concurrency; no unit ordering is
// guaranteed across workers.
func RunPool[T any](ctx context.Context, r *Runner, workers int, units []T, fn UnitFunc[T]) Report {
	if workers < 1 {
		workers = 1
	}

	work := make(chan T)
	var mu sync.Mutex
	var report Report
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range work {
				process(ctx, r, unit, fn, &report, &mu)
			}
		}()
	}

	for _, unit := range units {
		if ctx.Err() != nil {
			break
		}
		work <- unit
	}
	close(work)
	wg.Wait()

	return report
}

// Factory builds a fresh, worker-owned resource handle. Handles must never
// cross worker boundaries; each worker acquires and releases its own.
type Factory[R any] func(ctx context.Context) (R, func(), error)

// IsolatedUnitFunc processes one unit with worker-owned resources.
type IsolatedUnitFunc[T, R any] func(ctx context.Context, res R, unit T) error

// RunIsolated processes units on a pool where every worker constructs its
// own resources through factory before its first unit and releases them on
// exit. A worker whose factory fails marks the units it receives as failed
// so they surface in the report and retry on the next run.
func RunIsolated[T, R any](ctx context.Context, r *Runner, workers int, units []T, factory Factory[R], fn IsolatedUnitFunc[T, R]) Report {
	if workers < 1 {
		workers = 1
	}

	work := make(chan T)
	var mu sync.Mutex
	var report Report
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			res, release, err := factory(ctx)
			if err != nil {
				r.logger.Error(ctx, "worker failed to acquire resources",
					logger.Int("worker", worker),
					logger.Error(err),
				)
				// Keep draining so the producer never blocks; the units
				// are deferred to the next scheduled run.
				for range work {
					mu.Lock()
					report.Failed++
					mu.Unlock()
					metrics.RecordUnitFailed()
				}
				return
			}
			defer release()

			bound := func(ctx context.Context, unit T) error {
				return fn(ctx, res, unit)
			}
			for unit := range work {
				process(ctx, r, unit, bound, &report, &mu)
			}
		}(i)
	}

	for _, unit := range units {
		if ctx.Err() != nil {
			break
		}
		work <- unit
	}
	close(work)
	wg.Wait()

	return report
}

// process runs one unit, containing panics and errors.
func process[T any](ctx context.Context, r *Runner, unit T, fn UnitFunc[T], report *Report, mu *sync.Mutex) {
	record := func(failed bool) {
		if mu != nil {
			mu.Lock()
			defer mu.Unlock()
		}
		if failed {
			report.Failed++
			metrics.RecordUnitFailed()
			return
		}
		report.Processed++
		metrics.RecordUnitProcessed()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(ctx, "unit panicked", logger.Any("panic", rec))
			record(true)
		}
	}()

	if err := fn(ctx, unit); err != nil {
		r.logger.Error(ctx, "unit failed", logger.Error(err))
		record(true)
		return
	}
	record(false)
}

func countRemaining(total int, report Report) int {
	remaining := total - report.Processed - report.Failed - report.Skipped
	if remaining < 0 {
		return 0
	}
	return remaining
}
