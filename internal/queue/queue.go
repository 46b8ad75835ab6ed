// Package queue provides the bounded multi-producer multi-consumer queues
// that carry work units from the pool controller to its workers.
//
// Push blocks while a queue is full, which is what gives producers
// backpressure. Pop blocks while it is empty. Both give up when their
// context is done or the queue is closed.
package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by Push on a closed queue and by Pop on a closed
// queue that has been drained.
var ErrClosed = errors.New("queue is closed")

// Queue is a bounded FIFO shared by any number of producers and consumers.
type Queue[T any] interface {
	Push(ctx context.Context, v T) error
	Pop(ctx context.Context) (T, error)
	Len() int
	Cap() int
	Close()
}

// New returns a ring buffer queue when ring is set and a channel backed
// queue otherwise.
func New[T any](capacity int, ring bool) Queue[T] {
	if ring {
		return NewRing[T](capacity)
	}
	return NewChannel[T](capacity)
}
