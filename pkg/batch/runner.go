// Package batch executes finite sets of asynchronous tasks in fixed-size,
// paced batches.
//
// The runner is protocol-agnostic: it knows nothing about object storage.
// Callers use it to throttle bulk client operations (part uploads, mass
// deletes) without adding retry or backoff policy, which stays a caller
// concern.
package batch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Task is a unit of work. Tasks within a batch run concurrently; the
// runner imposes no ordering among them.
type Task[T any] func(ctx context.Context) (T, error)

// Outcome is the settled result of one task: success-with-value or
// failure-with-reason. A task failure never cancels its batch siblings
// and never propagates automatically; callers inspect each outcome.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task settled successfully.
func (o Outcome[T]) OK() bool { return o.Err == nil }

// Config tunes a run.
type Config struct {
	// Size is the maximum number of tasks run concurrently per batch.
	// Values below 1 are treated as 1.
	Size int

	// Spacing is the minimum interval between consecutive batch starts.
	// Zero disables pacing. Each batch after the first begins no sooner
	// than Spacing after the previous batch started, regardless of how
	// quickly its tasks settled.
	Spacing time.Duration
}

// Run partitions tasks into fixed-size batches preserving input order,
// runs each batch's tasks concurrently, and waits for every task in a
// batch to settle before moving on. Outcomes are returned in input order.
//
// Cancelling ctx stops pacing between batches; tasks not yet started are
// settled as failures carrying the context error. In-flight tasks receive
// the same ctx and are responsible for observing it.
func Run[T any](ctx context.Context, tasks []Task[T], cfg Config) []Outcome[T] {
	size := cfg.Size
	if size < 1 {
		size = 1
	}

	outcomes := make([]Outcome[T], len(tasks))

	var limiter *rate.Limiter
	if cfg.Spacing > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Spacing), 1)
	}

	for start := 0; start < len(tasks); start += size {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				for i := start; i < len(tasks); i++ {
					outcomes[i].Err = err
				}
				return outcomes
			}
		} else if err := ctx.Err(); err != nil {
			for i := start; i < len(tasks); i++ {
				outcomes[i].Err = err
			}
			return outcomes
		}

		end := start + size
		if end > len(tasks) {
			end = len(tasks)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				outcomes[idx].Value, outcomes[idx].Err = tasks[idx](ctx)
			}(i)
		}
		wg.Wait()
	}

	return outcomes
}
