// Package futures provides completion primitives for in-flight network
// operations: a single-assignment Future and a Reactive future that
// additionally multicasts a stream of partial results to observers and
// blocking iterators.
package futures

import (
	"context"
	"sync"
)

// Future is a single-assignment container for the result of an
// asynchronous operation. It resolves exactly once, with either a value
// or an error; later resolution attempts are rejected.
type Future[T any] struct {
	mu    sync.Mutex
	done  chan struct{}
	value T
	err   error
}

// NewFuture creates an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Complete resolves the future with value. It reports whether this call
// performed the resolution.
func (f *Future[T]) Complete(value T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return false
	default:
	}
	f.value = value
	close(f.done)
	return true
}

// Fail resolves the future with err. It reports whether this call
// performed the resolution.
func (f *Future[T]) Fail(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return false
	default:
	}
	f.err = err
	close(f.done)
	return true
}

// Done reports whether the future has resolved.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the failure error, or nil if the future is unresolved or
// resolved with a value.
func (f *Future[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Wait blocks until the future resolves or ctx is cancelled.
func (f *Future[T]) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return nil
	}
}

// Result blocks until the future resolves or ctx is cancelled, then
// returns the resolved value or error.
func (f *Future[T]) Result(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-f.done:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}
