// Package pool runs a mapping operation over an ordered slice with a bounded
// number of concurrent workers.
package pool

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// MapFunc transforms the item at index i.
type MapFunc[In, Out any] func(ctx context.Context, i int, item In) (Out, error)

type options struct {
	cancelOnError bool
	observe       func(delta int)
}

// Option tunes a Map call.
type Option func(*options)

// WithCancelOnError cancels the context handed to in-flight operations once
// any operation fails. By default in-flight siblings run to completion.
func WithCancelOnError() Option {
	return func(o *options) { o.cancelOnError = true }
}

// WithObserver registers a callback invoked with +1/-1 as operations start
// and finish. It must be safe for concurrent use.
func WithObserver(fn func(delta int)) Option {
	return func(o *options) { o.observe = fn }
}

// Workers returns the number of workers Map spawns for n items: limit
// clamped to [1, n].
func Workers(limit, n int) int {
	if limit < 1 {
		limit = 1
	}
	if limit > n {
		limit = n
	}
	return limit
}

// Map applies fn to every item with at most Workers(limit, len(items))
// operations in flight. The result at index i always belongs to items[i].
//
// Workers claim indices from a shared atomic cursor, so each item is
// processed exactly once. After the first failure no new indices are
// claimed; Map returns that failure once every in-flight operation has
// settled. There is no partial result on failure.
func Map[In, Out any](ctx context.Context, items []In, limit int, fn MapFunc[In, Out], opts ...Option) ([]Out, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	n := len(items)
	out := make([]Out, n)
	if n == 0 {
		return out, nil
	}

	g := &errgroup.Group{}
	workCtx := ctx
	if o.cancelOnError {
		g, workCtx = errgroup.WithContext(ctx)
	}

	var (
		next   atomic.Int64
		failed atomic.Bool
	)
	for range Workers(limit, n) {
		g.Go(func() error {
			for !failed.Load() {
				i := int(next.Add(1) - 1)
				if i >= n {
					return nil
				}
				if o.observe != nil {
					o.observe(1)
				}
				res, err := fn(workCtx, i, items[i])
				if o.observe != nil {
					o.observe(-1)
				}
				if err != nil {
					failed.Store(true)
					return fmt.Errorf("item %d: %w", i, err)
				}
				out[i] = res
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
