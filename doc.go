/*
Package workq provides a blocking work queue and a fixed-size worker pool with
graceful shutdown, plus a few producers that feed the pool.

Queueing (pkg/streaming):
  - queue: Unbounded blocking FIFO with a terminal shutdown state
  - redisfeed: Drains a Redis list into a worker pool

Task Scheduling (pkg/scheduling):
  - workerpool: Fixed set of workers draining one queue
  - scheduler: One-shot, interval and cron submission into a pool

Example usage:

	import (
		"github.com/vnykmshr/workq/pkg/scheduling/workerpool"
		"github.com/vnykmshr/workq/pkg/streaming/queue"
	)

	q := queue.New[string]()
	q.Enqueue("job")
	q.SignalShutdown()
	for {
		item, ok := q.Dequeue()
		if !ok {
			break // closed and drained
		}
		handle(item)
	}

	pool := workerpool.New(4)
	defer pool.Close() // runs every submitted task, then joins the workers
	pool.Execute(task)
*/
package workq
