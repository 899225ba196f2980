package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vnykmshr/workq/pkg/metrics"
	"github.com/vnykmshr/workq/pkg/scheduling/workerpool"
)

// Outcome labels for the scheduled runs metric.
const (
	OutcomeSubmitted = "submitted"
	OutcomeRejected  = "rejected"
)

// cronParser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as "@hourly" or "@every 5m".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Task describes a scheduled entry.
type Task struct {
	ID       string
	RunAt    time.Time
	Interval time.Duration // Zero for one-time and cron tasks
	CronExpr string        // Empty unless scheduled with ScheduleCron
	Created  time.Time
	Runs     int64
}

// Scheduler submits tasks to a worker pool at a time, on an interval, or on a
// cron schedule. It never runs tasks itself.
type Scheduler interface {
	// Basic scheduling
	Schedule(id string, task workerpool.Task, runAt time.Time) error
	ScheduleAfter(id string, task workerpool.Task, delay time.Duration) error
	ScheduleRepeating(id string, task workerpool.Task, interval time.Duration) error

	// Cron scheduling
	ScheduleCron(id string, cronExpr string, task workerpool.Task) error

	// Task management
	Cancel(id string) bool
	CancelAll()
	List() []Task

	// Lifecycle
	Start() error
	Stop() <-chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	// Pool receives due tasks. If nil, the scheduler creates a 4-worker pool
	// of its own and closes it on Stop.
	Pool *workerpool.Pool

	Location     *time.Location // For cron scheduling
	TickInterval time.Duration  // How often to check for ready tasks (default: 50ms)
	MaxTasks     int            // Maximum number of scheduled tasks (default: 10000)

	// Logger receives submission failures. If nil, logging is disabled.
	Logger *zap.Logger

	// Metrics, if set, counts submissions per task id and outcome.
	Metrics *metrics.Registry
}

// ValidateCron reports whether expr is a cron expression the scheduler accepts.
func ValidateCron(expr string) error {
	_, err := parseCron(expr)
	return err
}

func parseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

type scheduledTask struct {
	id           string
	task         workerpool.Task
	runAt        time.Time
	interval     time.Duration
	cronExpr     string
	cronSchedule cron.Schedule
	created      time.Time
	runs         int64
}

type scheduler struct {
	pool         *workerpool.Pool
	ownPool      bool
	location     *time.Location
	tickInterval time.Duration
	maxTasks     int
	logger       *zap.Logger
	metrics      *metrics.Registry

	mu       sync.RWMutex
	tasks    map[string]*scheduledTask
	done     chan struct{}
	exited   chan struct{}
	running  bool
	stopped  bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a scheduler with default configuration.
func New() Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) Scheduler {
	pool := cfg.Pool
	ownPool := false
	if pool == nil {
		pool = workerpool.New(4)
		ownPool = true
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = 50 * time.Millisecond
	}

	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10000
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &scheduler{
		pool:         pool,
		ownPool:      ownPool,
		location:     location,
		tickInterval: tickInterval,
		maxTasks:     maxTasks,
		logger:       logger.With(zap.String("component", "scheduler")),
		metrics:      cfg.Metrics,
		tasks:        make(map[string]*scheduledTask),
		done:         make(chan struct{}),
		exited:       make(chan struct{}),
		stopCh:       make(chan struct{}),
	}
}

func validateEntry(id string, task workerpool.Task) error {
	if id == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if len(id) > 255 {
		return fmt.Errorf("task ID too long (max 255 characters)")
	}
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	return nil
}

// addLocked registers an entry (must hold lock).
func (s *scheduler) addLocked(st *scheduledTask) error {
	if _, exists := s.tasks[st.id]; exists {
		return fmt.Errorf("task with ID %q already exists, use a different ID or cancel the existing task first", st.id)
	}
	if len(s.tasks) >= s.maxTasks {
		return fmt.Errorf("cannot schedule task: maximum number of tasks (%d) reached", s.maxTasks)
	}
	s.tasks[st.id] = st
	return nil
}

func (s *scheduler) Schedule(id string, task workerpool.Task, runAt time.Time) error {
	if err := validateEntry(id, task); err != nil {
		return err
	}
	if runAt.IsZero() {
		return fmt.Errorf("task run time cannot be zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addLocked(&scheduledTask{
		id:      id,
		task:    task,
		runAt:   runAt,
		created: time.Now(),
	})
}

func (s *scheduler) ScheduleAfter(id string, task workerpool.Task, delay time.Duration) error {
	return s.Schedule(id, task, time.Now().Add(delay))
}

func (s *scheduler) ScheduleRepeating(id string, task workerpool.Task, interval time.Duration) error {
	if err := validateEntry(id, task); err != nil {
		return err
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	return s.addLocked(&scheduledTask{
		id:       id,
		task:     task,
		runAt:    now,
		interval: interval,
		created:  now,
	})
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, task workerpool.Task) error {
	if err := validateEntry(id, task); err != nil {
		return err
	}
	schedule, err := parseCron(cronExpr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	return s.addLocked(&scheduledTask{
		id:           id,
		task:         task,
		runAt:        schedule.Next(now.In(s.location)),
		cronExpr:     cronExpr,
		cronSchedule: schedule,
		created:      now,
	})
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; exists {
		delete(s.tasks, id)
		return true
	}
	return false
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]*scheduledTask)
}

func (s *scheduler) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, Task{
			ID:       t.id,
			RunAt:    t.runAt,
			Interval: t.interval,
			CronExpr: t.cronExpr,
			Created:  t.created,
			Runs:     t.runs,
		})
	}

	// Sort by run time
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].RunAt.Before(tasks[j].RunAt)
	})

	return tasks
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler has been stopped and cannot be restarted")
	}
	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}

	s.running = true
	go s.run(time.NewTicker(s.tickInterval))
	return nil
}

// Stop halts the tick loop and, if the scheduler owns its pool, closes the
// pool once queued tasks have drained. The returned channel is closed when
// both are done. Tasks already handed to a caller-supplied pool are left to
// that pool's Close.
func (s *scheduler) Stop() <-chan struct{} {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		wasRunning := s.running
		s.running = false
		s.stopped = true
		close(s.done)
		s.mu.Unlock()

		go func() {
			defer close(s.stopCh)
			if wasRunning {
				<-s.exited
			}
			if s.ownPool {
				s.pool.Close()
			}
		}()
	})

	return s.stopCh
}

func (s *scheduler) run(ticker *time.Ticker) {
	defer close(s.exited)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.processReadyTasks(now)
		}
	}
}

func (s *scheduler) processReadyTasks(now time.Time) {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return
	}

	readyTasks := make([]*scheduledTask, 0, len(s.tasks))

	for id, task := range s.tasks {
		if !now.Before(task.runAt) {
			readyTasks = append(readyTasks, task)
			task.runs++

			switch {
			case task.interval > 0:
				task.runAt = now.Add(task.interval)
			case task.cronSchedule != nil:
				task.runAt = task.cronSchedule.Next(now.In(s.location))
			default:
				delete(s.tasks, id)
			}
		}
	}
	s.mu.Unlock()

	for _, task := range readyTasks {
		s.submit(task)
	}
}

// submit hands one due task to the pool. A closed pool is logged and
// counted; the schedule itself is kept.
func (s *scheduler) submit(task *scheduledTask) {
	outcome := OutcomeSubmitted
	if err := s.pool.TryExecute(task.task); err != nil {
		outcome = OutcomeRejected
		s.logger.Warn("scheduled task rejected by pool",
			zap.String("task_id", task.id),
			zap.Error(err),
		)
	}

	if s.metrics != nil {
		s.metrics.ScheduledRuns.WithLabelValues(task.id, outcome).Inc()
	}
}
