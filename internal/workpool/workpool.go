// Package workpool runs independent units of work under a fixed concurrency cap.
package workpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// ErrorHandler receives the failure of a single unit. It runs on the worker goroutine.
type ErrorHandler[T any] func(item T, err error)

// Run executes fn for every item with at most size units in flight and waits for all of them.
// A unit's error or panic goes to onErr and never affects its siblings. Run itself fails only
// when the pool cannot be created; once ctx is done no further units are started.
func Run[T any](ctx context.Context, size int, items []T, fn func(context.Context, T) error, onErr ErrorHandler[T]) error {
	if len(items) == 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := runUnit(ctx, item, fn); err != nil && onErr != nil {
				onErr(item, err)
			}
		})
		if submitErr != nil {
			wg.Done()
			if onErr != nil {
				onErr(item, fmt.Errorf("submit: %w", submitErr))
			}
		}
	}

	wg.Wait()
	return nil
}

func runUnit[T any](ctx context.Context, item T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, item)
}
