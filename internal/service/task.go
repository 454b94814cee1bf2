package service

import (
	"context"
	"sync"
)

// Task is the future of a piece of background work. Callers either Wait for
// it or drop it; the work runs to completion regardless.
type Task[T any] struct {
	done   chan struct{}
	once   sync.Once
	result T
	err    error
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// CompletedTask returns a task that is already resolved.
func CompletedTask[T any](result T, err error) *Task[T] {
	t := newTask[T]()
	t.resolve(result, err)
	return t
}

// runTask runs fn on its own goroutine and returns its future.
func runTask[T any](fn func() (T, error)) *Task[T] {
	t := newTask[T]()
	go func() {
		t.resolve(fn())
	}()
	return t
}

func (t *Task[T]) resolve(result T, err error) {
	t.once.Do(func() {
		t.result = result
		t.err = err
		close(t.done)
	})
}

// Done is closed once the result is available.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task resolves or ctx ends. A cancelled wait does not
// cancel the work.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
