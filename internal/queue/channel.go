package queue

import (
	"context"
	"sync"
)

// Channel is a Queue backed by a buffered channel. Its capacity is exact.
type Channel[T any] struct {
	items     chan T
	closeC    chan struct{}
	closeOnce sync.Once
}

// NewChannel creates a channel queue holding at most capacity items.
// A non-positive capacity is treated as one.
func NewChannel[T any](capacity int) *Channel[T] {
	return &Channel[T]{
		items:  make(chan T, max(capacity, 1)),
		closeC: make(chan struct{}),
	}
}

func (q *Channel[T]) Push(ctx context.Context, v T) error {
	select {
	case <-q.closeC:
		return ErrClosed
	default:
	}

	select {
	case q.items <- v:
		return nil
	case <-q.closeC:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop keeps returning buffered items after Close until the queue is empty.
func (q *Channel[T]) Pop(ctx context.Context) (T, error) {
	var zero T

	select {
	case v := <-q.items:
		return v, nil
	default:
	}

	select {
	case v := <-q.items:
		return v, nil
	case <-q.closeC:
		select {
		case v := <-q.items:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (q *Channel[T]) Len() int { return len(q.items) }

func (q *Channel[T]) Cap() int { return cap(q.items) }

func (q *Channel[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.closeC)
	})
}
