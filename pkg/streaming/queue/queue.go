package queue

import (
	"sync"

	gferrors "github.com/vnykmshr/workq/pkg/common/errors"
)

// Stats is a point-in-time snapshot of queue activity.
type Stats struct {
	// Pending is the number of items waiting to be dequeued.
	Pending int

	// Enqueued is the total number of items accepted.
	Enqueued uint64

	// Dequeued is the total number of items handed to consumers.
	Dequeued uint64

	// Closed reports whether SignalShutdown has been called.
	Closed bool
}

// state is everything the mutex guards. Emptiness and closure are always
// read together, so they must never be split across locks.
type state[T any] struct {
	items    []T
	closed   bool
	enqueued uint64
	dequeued uint64
}

// BlockingQueue is an unbounded multi-producer, multi-consumer FIFO queue.
// Consumers block in Dequeue while the queue is empty and open.
// SignalShutdown moves the queue into a terminal closed state; items already
// queued are still delivered before consumers see the end of the stream.
//
// The zero value is not usable; create queues with New.
type BlockingQueue[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state state[T]
}

// New creates an empty, open queue.
func New[T any]() *BlockingQueue[T] {
	q := &BlockingQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends item to the back of the queue and wakes one waiting consumer.
//
// Enqueue on a closed queue panics with a *errors.ProtocolViolation wrapping
// errors.ErrClosed. Use TryEnqueue when shutdown may race with producers.
func (q *BlockingQueue[T]) Enqueue(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state.closed {
		panic(gferrors.NewProtocolViolation("enqueue", gferrors.ErrClosed))
	}

	q.pushLocked(item)
}

// TryEnqueue is like Enqueue but returns errors.ErrClosed instead of
// panicking when the queue has been shut down.
func (q *BlockingQueue[T]) TryEnqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state.closed {
		return gferrors.ErrClosed
	}

	q.pushLocked(item)
	return nil
}

// Dequeue removes and returns the item at the front of the queue, blocking
// while the queue is empty and open. Queued items are returned even after
// shutdown; ok is false only once the queue is both empty and closed.
func (q *BlockingQueue[T]) Dequeue() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.state.items) == 0 && !q.state.closed {
		q.cond.Wait()
	}

	if len(q.state.items) == 0 {
		return item, false
	}

	return q.popLocked(), true
}

// TryDequeue removes the front item without blocking. ok is false when
// nothing is queued, whether or not the queue is closed.
func (q *BlockingQueue[T]) TryDequeue() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.state.items) == 0 {
		return item, false
	}

	return q.popLocked(), true
}

// SignalShutdown closes the queue and wakes every blocked consumer.
// Calling it more than once has no further effect.
func (q *BlockingQueue[T]) SignalShutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.state.closed = true
	q.cond.Broadcast()
}

// Size returns the number of queued items. The value may be stale as soon
// as it is returned.
func (q *BlockingQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.state.items)
}

// IsClosed reports whether SignalShutdown has been called.
func (q *BlockingQueue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state.closed
}

// Stats returns a consistent snapshot of the queue counters.
func (q *BlockingQueue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Pending:  len(q.state.items),
		Enqueued: q.state.enqueued,
		Dequeued: q.state.dequeued,
		Closed:   q.state.closed,
	}
}

// pushLocked appends an item and wakes a single consumer (must hold lock).
func (q *BlockingQueue[T]) pushLocked(item T) {
	q.state.items = append(q.state.items, item)
	q.state.enqueued++
	q.cond.Signal()
}

// popLocked removes the front item (must hold lock, queue non-empty).
func (q *BlockingQueue[T]) popLocked() T {
	item := q.state.items[0]
	var zero T
	q.state.items[0] = zero // Clear reference
	q.state.items = q.state.items[1:]
	if len(q.state.items) == 0 {
		q.state.items = nil
	}
	q.state.dequeued++
	return item
}
