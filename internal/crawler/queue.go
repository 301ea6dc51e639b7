package crawler

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO shared by producer and consumer workers.
// Pop blocks until an item arrives, the queue is closed and drained, or ctx ends.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

// NewQueue returns an open queue seeded with items.
func NewQueue[T any](items ...T) *Queue[T] {
	q := &Queue[T]{ready: make(chan struct{}, 1)}
	if len(items) > 0 {
		q.items = append(q.items, items...)
		q.signal()
	}
	return q
}

// Push appends v; it fails once the queue is closed.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, v)
	q.signal()
	return nil
}

// Close marks the end of input. Items already queued are still handed out.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}

// Pop returns the oldest item. ok is false when the queue is closed and
// empty, or when ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (v T, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v = q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			if len(q.items) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return v, true
		}
		if q.closed {
			q.mu.Unlock()
			return v, false
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return v, false
		}
	}
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// signal wakes one waiter; must hold mu.
func (q *Queue[T]) signal() {
	if q.closed {
		return
	}
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
