package queue

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

const (
	// Cache line size for padding to prevent false sharing
	cacheLinePadding = 128
	// Maximum spin attempts before parking
	maxSpinAttempts = 10
	// Upper bound on how long a parked goroutine waits before re-checking
	// the ring, so a missed signal costs latency rather than progress.
	parkTimeout = 5 * time.Millisecond
)

type ringSlot[T any] struct {
	sequence uint64
	value    T
	_        [cacheLinePadding - 16]byte
}

// Ring is a lock-free Queue built on a sequenced ring buffer. Capacity is
// rounded up to a power of two. Producers block while the ring is full.
type Ring[T any] struct {
	ring []ringSlot[T]
	mask uint64

	_    [cacheLinePadding]byte
	head uint64
	_    [cacheLinePadding - 8]byte
	tail uint64
	_    [cacheLinePadding - 8]byte

	closed atomic.Bool

	// Buffered, never closed. dataC wakes consumers, spaceC wakes producers.
	dataC  chan struct{}
	spaceC chan struct{}
	// Closed on shutdown.
	closeC chan struct{}
}

// NewRing creates a ring queue with room for at least capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	capacity = nextPowerOfTwo(capacity)
	ring := make([]ringSlot[T], capacity)
	for i := range ring {
		ring[i].sequence = uint64(i) // #nosec G115 -- loop index within ring bounds
	}

	return &Ring[T]{
		ring:   ring,
		mask:   uint64(capacity - 1), // #nosec G115 -- capacity is positive
		dataC:  make(chan struct{}, 1),
		spaceC: make(chan struct{}, 1),
		closeC: make(chan struct{}),
	}
}

func (q *Ring[T]) Push(ctx context.Context, v T) error {
	spins := 0
	for {
		if q.closed.Load() {
			return ErrClosed
		}

		tail := atomic.LoadUint64(&q.tail)
		slot := &q.ring[tail&q.mask]
		diff := int64(atomic.LoadUint64(&slot.sequence)) - int64(tail) // #nosec G115 -- sequence comparison

		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				slot.value = v
				atomic.StoreUint64(&slot.sequence, tail+1)
				notify(q.dataC)
				if q.Len() < q.Cap() {
					// Chain the wakeup to the next blocked producer.
					notify(q.spaceC)
				}
				return nil
			}
			continue
		case diff > 0:
			// Another producer claimed this slot; reload.
			continue
		}

		spins++
		if spins < maxSpinAttempts {
			runtime.Gosched()
			continue
		}
		spins = 0

		if err := q.park(ctx, q.spaceC); err != nil {
			return err
		}
	}
}

// Pop keeps returning buffered items after Close until the ring is empty.
func (q *Ring[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	spins := 0
	for {
		head := atomic.LoadUint64(&q.head)
		slot := &q.ring[head&q.mask]
		diff := int64(atomic.LoadUint64(&slot.sequence)) - int64(head+1) // #nosec G115 -- sequence comparison

		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				v := slot.value
				slot.value = zero
				atomic.StoreUint64(&slot.sequence, head+q.mask+1)
				notify(q.spaceC)
				if q.Len() > 0 {
					notify(q.dataC)
				}
				return v, nil
			}
			continue
		case diff > 0:
			continue
		}

		if q.closed.Load() && q.Len() == 0 {
			return zero, ErrClosed
		}

		spins++
		if spins < maxSpinAttempts {
			runtime.Gosched()
			continue
		}
		spins = 0

		if err := q.park(ctx, q.dataC); err != nil {
			if err == ErrClosed {
				continue
			}
			return zero, err
		}
	}
}

// park waits for a wakeup on c, the context, shutdown or a short timeout.
func (q *Ring[T]) park(ctx context.Context, c <-chan struct{}) error {
	timer := time.NewTimer(parkTimeout)
	defer timer.Stop()

	select {
	case <-c:
		return nil
	case <-timer.C:
		return nil
	case <-q.closeC:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func notify(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}

// Len returns the approximate number of queued items.
func (q *Ring[T]) Len() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	if tail > head {
		return int(tail - head) // #nosec G115 -- tail > head
	}
	return 0
}

func (q *Ring[T]) Cap() int { return len(q.ring) }

// Close rejects further pushes and wakes every parked goroutine.
func (q *Ring[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.closeC)
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	if n&(n-1) == 0 {
		return n
	}
	power := 1
	for power < n {
		power *= 2
	}
	return power
}
