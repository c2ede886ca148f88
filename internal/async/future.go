// Package async provides a single-shot completion signal that any number of
// waiters can block on.
package async

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadySettled is returned when a future is resolved or rejected twice.
var ErrAlreadySettled = errors.New("future already settled")

// Future is a value that becomes available exactly once. Waiters block on
// Await until the future is resolved, rejected, or their context ends.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// NewFuture creates an unsettled future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved creates a future that is already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := NewFuture[T]()
	_ = f.Resolve(v)
	return f
}

// Resolve settles the future with a value.
func (f *Future[T]) Resolve(v T) error {
	return f.settle(v, nil)
}

// Reject settles the future with an error.
func (f *Future[T]) Reject(err error) error {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) error {
	settled := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
		settled = true
	})
	if !settled {
		return ErrAlreadySettled
	}
	return nil
}

// Done returns a channel that is closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has been resolved or rejected.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future is settled or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
