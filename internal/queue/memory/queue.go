// Package memory provides the bounded work queue used by the batch orchestrator.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded FIFO with context-aware operations.
type Queue[T any] struct {
	ch      chan T
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue holding at most capacity pending items.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Enqueue blocks until there is room for item or ctx ends. Enqueue must not be
// called after Close.
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item. Cancellation wins over pending items.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("dequeue canceled: %w", err)
	}
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return zero, ErrClosed
		}
		return item, nil
	}
}

// Close stops further enqueues. Pending items stay available to Dequeue and
// Drain. Closing twice is safe.
func (q *Queue[T]) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

// Drain returns every pending item without blocking.
func (q *Queue[T]) Drain() []T {
	var out []T
	for {
		select {
		case item, ok := <-q.ch:
			if !ok {
				return out
			}
			out = append(out, item)
		default:
			return out
		}
	}
}

// Len reports the number of pending items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}
