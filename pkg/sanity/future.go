package sanity

import (
	"context"
)

// Future is the pending result of an asynchronous call.
type Future[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	value  T
	err    error
}

// Go runs fn on its own goroutine and returns a future for its result.
// The context passed to fn is cancelled by Cancel, or when Await gives up.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)

	f := &Future[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(f.done)
		defer cancel()

		f.value, f.err = fn(ctx)
	}()

	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel aborts the call. Await then returns context.Canceled unless the
// call had already completed.
func (f *Future[T]) Cancel() {
	f.cancel()
}

// Await blocks until the result is available or ctx is done. In the latter
// case the call is cancelled and Await waits for it to release its resources.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		f.cancel()
		<-f.done

		var zero T

		return zero, ctx.Err()
	}
}
