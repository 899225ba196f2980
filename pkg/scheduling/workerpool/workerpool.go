package workerpool

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/workq/pkg/common/errors"
	"github.com/vnykmshr/workq/pkg/common/validation"
	"github.com/vnykmshr/workq/pkg/metrics"
	"github.com/vnykmshr/workq/pkg/streaming/queue"
)

// Task is a unit of work executed exactly once by one worker.
// A Task reports nothing back to its submitter; a caller that needs a result
// should capture a channel in the closure.
type Task func()

// Result describes one task execution. It is delivered to
// Config.OnTaskComplete, never to the submitter.
type Result struct {
	// WorkerID identifies which worker executed the task
	WorkerID int

	// Duration is how long the task took to execute
	Duration time.Duration

	// Panic holds the recovered value if the task panicked, nil otherwise
	Panic interface{}
}

// WorkerState is the lifecycle state of a single worker.
type WorkerState int32

const (
	// Running means the worker is waiting on the dispatch queue.
	Running WorkerState = iota

	// Executing means the worker is running a claimed task.
	Executing

	// Terminated means the dispatch queue was closed and drained and the
	// worker has exited. It is never left.
	Terminated
)

func (s WorkerState) String() string {
	switch s {
	case Running:
		return "running"
	case Executing:
		return "executing"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// Name labels the pool in logs and metrics. Defaults to "default".
	Name string

	// Logger receives worker lifecycle and task panic logs.
	// If nil, logging is disabled.
	Logger *zap.Logger

	// Metrics, if set, receives pool metrics labelled with Name.
	Metrics *metrics.Registry

	// PanicHandler is called when a task panics, after the panic is logged.
	// The worker keeps running regardless of what the handler does; a panic
	// raised by this or any other hook is recovered and logged.
	PanicHandler func(workerID int, recovered interface{})

	// OnWorkerStart is called when a worker starts.
	// Useful for per-worker initialization (e.g., database connections).
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker stops.
	// Useful for per-worker cleanup.
	OnWorkerStop func(workerID int)

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(workerID int)

	// OnTaskComplete is called after a task completes (success or panic).
	OnTaskComplete func(workerID int, result Result)
}

// Pool is a fixed-size set of workers draining one shared dispatch queue.
//
// Tasks are submitted with Execute and run by whichever worker claims them
// first. Close shuts the dispatch queue, lets the workers finish every task
// that was already submitted, and waits for all of them to exit; call it
// with defer right after construction.
type Pool struct {
	config Config
	logger *zap.Logger

	workers []*worker
	tasks   *queue.BlockingQueue[envelope]

	closeOnce sync.Once

	activeWorkers  atomic.Int64
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64
	totalPanicked  atomic.Int64
}

// envelope carries a task through the dispatch queue.
type envelope struct {
	task     Task
	queuedAt time.Time
}

// worker represents a single worker in the pool.
type worker struct {
	id    int
	pool  *Pool
	state atomic.Int32
	done  chan struct{}
}

// New creates a pool with size workers. It panics with a
// *errors.ProtocolViolation if size is less than 1.
func New(size int) *Pool {
	return NewWithConfig(Config{WorkerCount: size})
}

// NewSafe creates a pool with validation that returns an error instead of panicking.
func NewSafe(size int) (*Pool, error) {
	return NewWithConfigSafe(Config{WorkerCount: size})
}

// NewWithConfig creates a pool with the specified configuration.
// It panics with a *errors.ProtocolViolation if the configuration is invalid.
func NewWithConfig(config Config) *Pool {
	p, err := NewWithConfigSafe(config)
	if err != nil {
		panic(gferrors.NewProtocolViolation("new", err))
	}
	return p
}

// NewWithConfigSafe creates a pool with validation that returns an error instead of panicking.
// This is the recommended way to create pools from user-supplied configuration.
func NewWithConfigSafe(config Config) (*Pool, error) {
	if err := validation.ValidatePositive("workerpool", "size", config.WorkerCount); err != nil {
		return nil, err
	}

	if config.Name == "" {
		config.Name = "default"
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		config: config,
		logger: logger.With(zap.String("pool", config.Name)),
		tasks:  queue.New[envelope](),
	}

	if m := config.Metrics; m != nil {
		m.WorkerPoolSize.WithLabelValues(config.Name).Set(float64(config.WorkerCount))
		m.WorkerPoolActive.WithLabelValues(config.Name).Set(0)
		m.WorkerPoolQueued.WithLabelValues(config.Name).Set(0)
	}

	// Create and start workers
	p.workers = make([]*worker, config.WorkerCount)
	for i := 0; i < config.WorkerCount; i++ {
		w := &worker{
			id:   i,
			pool: p,
			done: make(chan struct{}),
		}
		w.state.Store(int32(Running))
		p.workers[i] = w
		go w.run()
	}

	return p, nil
}
