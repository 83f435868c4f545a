package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Result is the settled outcome of one fan-out job: a payload on success or
// an error on failure, never both.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok reports whether the job succeeded.
func (r Result[T]) Ok() bool { return r.Err == nil }

// FanOut runs every job concurrently and waits for all of them to settle.
// Results are returned in input order regardless of completion order, one
// per job. A job's failure never cancels or delays its siblings; there is no
// retry. limit > 0 bounds the number of jobs in flight at once.
func FanOut[T any](ctx context.Context, limit int, jobs []func(context.Context) (T, error)) []Result[T] {
	results := make([]Result[T], len(jobs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, job := range jobs {
		g.Go(func() error {
			results[i] = settle(ctx, job)
			return nil
		})
	}

	// Goroutines always return nil; Wait is purely a join barrier.
	_ = g.Wait()

	return results
}

// settle runs one job, converting a panic into an error so a misbehaving
// job degrades to a failure result instead of taking down the batch.
func settle[T any](ctx context.Context, job func(context.Context) (T, error)) (result Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			result = Result[T]{Err: eris.Errorf("job panicked: %v", r)}
		}
	}()

	v, err := job(ctx)
	return Result[T]{Value: v, Err: err}
}
