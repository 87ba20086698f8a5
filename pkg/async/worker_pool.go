package async

import (
	"context"
	"sync"
	"sync/atomic"
)

type EachAsyncIteratee[T any] func(context.Context, T) error

// WorkerPool calls fn for every item received from ch, with at most concurrency calls
// running at once. It stops taking items after the first error or when ctx is done, and
// returns once every started call has finished.
func WorkerPool[T any](ctx context.Context, concurrency int, ch <-chan T, fn EachAsyncIteratee[T]) error {
	if concurrency < 1 {
		concurrency = 1
	}

	semaphore := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	aErr := atomic.Pointer[error]{}

loop:
	for aErr.Load() == nil {
		select {
		case <-ctx.Done():
			break loop

		case m, ok := <-ch:
			if !ok {
				break loop
			}

			semaphore <- struct{}{}
			wg.Add(1)

			go func(m T) {
				defer func() {
					<-semaphore
					wg.Done()
				}()

				if err := fn(ctx, m); err != nil {
					aErr.CompareAndSwap(nil, &err)
				}
			}(m)
		}
	}

	wg.Wait()

	if err := aErr.Load(); err != nil {
		return *err
	}
	return ctx.Err()
}

// Collect runs fn over items in a WorkerPool and returns the results in input order.
func Collect[T, R any](ctx context.Context, concurrency int, items []T, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))

	indexes := make(chan int, len(items))
	for i := range items {
		indexes <- i
	}
	close(indexes)

	_ = WorkerPool(ctx, concurrency, indexes, func(ctx context.Context, i int) error {
		results[i] = NewResult(fn(ctx, items[i]))
		return nil
	})

	return results
}
