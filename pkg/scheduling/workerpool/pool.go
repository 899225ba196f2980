package workerpool

import (
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/workq/pkg/common/errors"
)

// Execute submits a task for asynchronous execution by one of the workers.
// It never blocks beyond a brief lock on the dispatch queue.
//
// Execute panics with a *errors.ProtocolViolation if task is nil or if Close
// has already been called. Use TryExecute when submission may race with Close.
func (p *Pool) Execute(task Task) {
	if err := p.submit(task); err != nil {
		panic(gferrors.NewProtocolViolation("execute", err))
	}
}

// TryExecute is like Execute but returns an error instead of panicking:
// errors.ErrClosed once the pool is closed, or a validation error for a nil task.
func (p *Pool) TryExecute(task Task) error {
	return p.submit(task)
}

func (p *Pool) submit(task Task) error {
	if task == nil {
		return gferrors.NewValidationError("workerpool", "task", nil, "cannot be nil").
			WithHint("provide a non-nil task")
	}

	p.totalSubmitted.Add(1)
	if err := p.tasks.TryEnqueue(envelope{task: task, queuedAt: time.Now()}); err != nil {
		p.totalSubmitted.Add(-1)
		return err
	}

	if m := p.config.Metrics; m != nil {
		m.TasksSubmitted.WithLabelValues(p.config.Name).Inc()
		m.WorkerPoolQueued.WithLabelValues(p.config.Name).Set(float64(p.tasks.Size()))
	}

	return nil
}

// Close shuts the pool down. Tasks already submitted still run; Close returns
// once every worker has finished its last task and exited. Workers are
// waited on in index order.
//
// Close is idempotent and safe to call from several goroutines; later callers
// block until the first teardown completes. Calling Close from inside a task
// deadlocks, because the calling worker would wait on itself.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.tasks.SignalShutdown()

		for _, w := range p.workers {
			p.logger.Info("shutting down worker", zap.Int("worker", w.id))
			<-w.done
		}

		if m := p.config.Metrics; m != nil {
			m.WorkerPoolActive.WithLabelValues(p.config.Name).Set(0)
			m.WorkerPoolQueued.WithLabelValues(p.config.Name).Set(0)
		}
	})
	return nil
}

// IsClosed reports whether Close has been called.
func (p *Pool) IsClosed() bool {
	return p.tasks.IsClosed()
}

// Name returns the pool name used in logs and metrics.
func (p *Pool) Name() string {
	return p.config.Name
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *Pool) QueueSize() int {
	return p.tasks.Size()
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *Pool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// TotalSubmitted returns the total number of tasks accepted by the pool.
func (p *Pool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of tasks that returned normally.
func (p *Pool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// TotalPanicked returns the total number of tasks that panicked.
func (p *Pool) TotalPanicked() int64 {
	return p.totalPanicked.Load()
}

// WorkerStates returns the current state of every worker, by worker id.
func (p *Pool) WorkerStates() []WorkerState {
	states := make([]WorkerState, len(p.workers))
	for i, w := range p.workers {
		states[i] = WorkerState(w.state.Load())
	}
	return states
}

// run is the main loop for a worker.
func (w *worker) run() {
	p := w.pool
	log := p.logger.With(zap.Int("worker", w.id))

	defer close(w.done)
	defer func() {
		w.state.Store(int32(Terminated))
		if p.config.OnWorkerStop != nil {
			callHook(log, "OnWorkerStop", func() { p.config.OnWorkerStop(w.id) })
		}
	}()

	log.Debug("worker started")
	if p.config.OnWorkerStart != nil {
		callHook(log, "OnWorkerStart", func() { p.config.OnWorkerStart(w.id) })
	}

	for {
		env, ok := p.tasks.Dequeue()
		if !ok {
			log.Debug("worker disconnected; shutting down")
			return
		}
		w.execute(env, log)
	}
}

// execute runs one task and records its outcome. A panicking task is
// contained here; the worker returns to its loop either way.
func (w *worker) execute(env envelope, log *zap.Logger) {
	p := w.pool
	name := p.config.Name

	w.state.Store(int32(Executing))
	p.activeWorkers.Add(1)

	if m := p.config.Metrics; m != nil {
		m.WorkerPoolActive.WithLabelValues(name).Inc()
		m.WorkerPoolQueued.WithLabelValues(name).Set(float64(p.tasks.Size()))
		m.TaskQueueWait.WithLabelValues(name).Observe(time.Since(env.queuedAt).Seconds())
	}

	if p.config.OnTaskStart != nil {
		callHook(log, "OnTaskStart", func() { p.config.OnTaskStart(w.id) })
	}

	log.Debug("worker got a task; executing")

	start := time.Now()
	recovered, stack := invoke(env.task)
	result := Result{
		WorkerID: w.id,
		Duration: time.Since(start),
		Panic:    recovered,
	}

	p.activeWorkers.Add(-1)
	w.state.Store(int32(Running))

	if recovered != nil {
		p.totalPanicked.Add(1)
		log.Error("task panicked",
			zap.Any("panic", recovered),
			zap.ByteString("stack", stack),
		)
		if p.config.PanicHandler != nil {
			callHook(log, "PanicHandler", func() { p.config.PanicHandler(w.id, recovered) })
		}
	} else {
		p.totalCompleted.Add(1)
	}

	if m := p.config.Metrics; m != nil {
		m.WorkerPoolActive.WithLabelValues(name).Dec()
		m.TaskExecutionDuration.WithLabelValues(name).Observe(result.Duration.Seconds())
		if recovered != nil {
			m.TasksPanicked.WithLabelValues(name).Inc()
		} else {
			m.TasksCompleted.WithLabelValues(name).Inc()
		}
	}

	if p.config.OnTaskComplete != nil {
		callHook(log, "OnTaskComplete", func() { p.config.OnTaskComplete(w.id, result) })
	}
}

// invoke calls task, converting a panic into a return value.
func invoke(task Task) (recovered interface{}, stack []byte) {
	defer func() {
		if r := recover(); r != nil {
			recovered = r
			stack = debug.Stack()
		}
	}()

	task()
	return nil, nil
}

// callHook runs a Config hook behind the same recover boundary as a task.
// A panicking hook is logged and otherwise ignored.
func callHook(log *zap.Logger, name string, hook func()) {
	if recovered, stack := invoke(hook); recovered != nil {
		log.Error("hook panicked",
			zap.String("hook", name),
			zap.Any("panic", recovered),
			zap.ByteString("stack", stack),
		)
	}
}
