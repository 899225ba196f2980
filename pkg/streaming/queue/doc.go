/*
Package queue provides an unbounded blocking FIFO queue with a terminal shutdown state.

BlockingQueue is the producer/consumer primitive underneath the worker pool, and it is
usable on its own. Any number of goroutines may enqueue and dequeue concurrently.

Basic usage:

	q := queue.New[string]()

	go func() {
		for {
			item, ok := q.Dequeue()
			if !ok {
				return // closed and drained
			}
			process(item)
		}
	}()

	q.Enqueue("a")
	q.Enqueue("b")
	q.SignalShutdown()

Blocking and Shutdown:

Dequeue blocks while the queue is empty and open. It returns as soon as an item is
available, or with ok == false once the queue is both empty and closed. That second
case is the only termination signal a consumer needs: "temporarily empty" never looks
like "done".

SignalShutdown wakes every blocked consumer so each one can observe the closed state.
Items queued before shutdown are still delivered, in order, so no accepted item is lost.
Shutdown is idempotent.

Misuse:

Enqueue after SignalShutdown is a caller bug and panics with *errors.ProtocolViolation.
Producers that may race with shutdown should call TryEnqueue, which returns
errors.ErrClosed instead:

	if err := q.TryEnqueue(item); errors.Is(err, gferrors.ErrClosed) {
		// shutting down
	}

Guarantees:

  - Items from one producer are dequeued in the order that producer enqueued them
  - Every item accepted before shutdown is dequeued exactly once
  - Consumers wait on a condition variable, never spin
  - There is no capacity limit; a producer that outpaces its consumers grows memory
  - There is no timeout or cancellation on Dequeue
*/
package queue
