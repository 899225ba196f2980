/*
Package workerpool provides a fixed-size worker pool with graceful shutdown.

A pool starts a fixed number of worker goroutines when it is created. Every worker
pulls tasks from one shared dispatch queue, so whichever worker is free next runs the
next task. There is no per-worker affinity and no result channel: a task that needs to
report back captures whatever it needs in its closure.

Basic usage:

	pool := workerpool.New(4)
	defer pool.Close()

	for _, job := range jobs {
		pool.Execute(func() {
			process(job)
		})
	}

Graceful Shutdown:

Close is the only way to stop a pool. It closes the dispatch queue, lets the workers
drain every task that was already submitted, and returns once all workers have exited.
Workers are waited on in index order and each one is logged as it is shut down:

	pool := workerpool.New(3)
	for i := 0; i < 10; i++ {
		pool.Execute(work)
	}
	pool.Close() // all 10 tasks have run

Close is idempotent. Calling it from inside a task deadlocks.

Misuse:

Execute after Close, or Execute with a nil task, panics with *errors.ProtocolViolation.
Producers that may race with shutdown use TryExecute, which returns errors.ErrClosed:

	if err := pool.TryExecute(task); errors.Is(err, gferrors.ErrClosed) {
		// pool is shutting down; drop or reroute the task
	}

Construction with a worker count below 1 panics in New and NewWithConfig, and returns a
*errors.ValidationError from NewSafe and NewWithConfigSafe.

Panics:

A panicking task never takes its worker down. The panic is recovered, logged at error
level with its stack, counted, and passed to Config.PanicHandler when one is set. The
worker then goes back to the queue.

Configuration:

	pool := workerpool.NewWithConfig(workerpool.Config{
		WorkerCount: 8,
		Name:        "ingest",
		Logger:      logger,
		Metrics:     metrics.DefaultRegistry,
		PanicHandler: func(workerID int, recovered interface{}) {
			alert(workerID, recovered)
		},
		OnTaskComplete: func(workerID int, result workerpool.Result) {
			observe(result.Duration)
		},
	})

Monitoring:

	pool.Size()           // worker count
	pool.QueueSize()      // tasks waiting
	pool.ActiveWorkers()  // workers running a task
	pool.TotalSubmitted()
	pool.TotalCompleted()
	pool.TotalPanicked()
	pool.WorkerStates()   // Running, Executing or Terminated per worker

With Config.Metrics set, the same figures are exported as Prometheus metrics labelled
with the pool name.

Thread Safety:

All Pool methods are safe for concurrent use.
*/
package workerpool
