package retry

import (
	"context"
	"time"
)

type fn func(ctx context.Context) error
type shouldRetry func(err error, attempt int) bool

// WrapWithRetry wraps the given function, calls it again after delay when it fails and shouldRetry returns true.
// The wrapped function returns nil once f succeeds or ctx is done, and the error that shouldRetry rejected otherwise.
func WrapWithRetry(f fn, shouldRetry shouldRetry, delay time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		attempt := 0

		for {
			err := f(ctx)
			if err == nil || ctx.Err() != nil {
				return nil
			}

			attempt++

			if !shouldRetry(err, attempt) {
				return err
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}
