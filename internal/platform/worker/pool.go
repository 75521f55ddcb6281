package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEach calls fn for every item with at most limit calls in flight.
// Errors returned by fn, and panics converted to *PanicError, are collected
// per item and do not cancel siblings. The returned slice is indexed like
// items and holds nil for successes.
func ForEach[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) error) []error {
	errs := make([]error, len(items))

	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group

	g.SetLimit(limit)

	for i, item := range items {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()

			continue
		}

		g.Go(func() error {
			errs[i] = Safe(nil, "for each item", func() error { return fn(ctx, item) })

			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors, failures are recorded in errs

	return errs
}
