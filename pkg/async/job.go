package async

import (
	"context"
)

// JobHandle is a running job whose context can be cancelled from outside.
type JobHandle[T any] struct {
	cancel func()
	done   chan struct{}
	result Result[T]
}

// Job runs job in a goroutine with a context derived from ctx.
func Job[T any](ctx context.Context, job func(ctx context.Context) (T, error)) *JobHandle[T] {
	ctx, cancel := context.WithCancel(ctx)
	handle := &JobHandle[T]{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(handle.done)
		defer cancel()

		handle.result = NewResult(job(ctx))
	}()

	return handle
}

// Stop cancels the job's context. It does not wait.
func (j *JobHandle[T]) Stop() {
	j.cancel()
}

// Wait blocks until the job returns. It may be called any number of times.
func (j *JobHandle[T]) Wait() (T, error) {
	<-j.done
	return j.result.Unpack()
}

// Done is closed when the job returns.
func (j *JobHandle[T]) Done() <-chan struct{} {
	return j.done
}
