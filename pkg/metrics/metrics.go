// Package metrics provides Prometheus instrumentation for workq components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vnykmshr/workq/pkg/streaming/queue"
)

// Registry holds all metric instances for workq components.
type Registry struct {
	namespace  string
	registerer prometheus.Registerer

	// Worker Pool Metrics
	TasksSubmitted        *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	TasksPanicked         *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec
	TaskQueueWait         *prometheus.HistogramVec
	WorkerPoolSize        *prometheus.GaugeVec
	WorkerPoolActive      *prometheus.GaugeVec
	WorkerPoolQueued      *prometheus.GaugeVec

	// Scheduler Metrics
	ScheduledRuns *prometheus.CounterVec

	// Feed Metrics
	FeedItems  *prometheus.CounterVec
	FeedErrors *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by workq components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Enabled: true, Registry: reg})
}

// NewRegistryWithConfig creates a metrics registry from cfg. It returns nil
// when cfg.Enabled is false; every component treats a nil *Registry as
// "not instrumented".
func NewRegistryWithConfig(cfg Config) *Registry {
	if !cfg.Enabled {
		return nil
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	factory := promauto.With(reg)

	return &Registry{
		namespace:  ns,
		registerer: reg,

		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks submitted to the pool",
			},
			[]string{"pool_name"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks that ran to completion",
			},
			[]string{"pool_name"},
		),

		TasksPanicked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "tasks_panicked_total",
				Help:      "Total number of tasks that panicked",
			},
			[]string{"pool_name"},
		),

		TaskExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "task_duration_seconds",
				Help:      "Time spent executing tasks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),

		TaskQueueWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "task_queue_wait_seconds",
				Help:      "Time tasks spent queued before a worker claimed them",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),

		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "size",
				Help:      "Number of workers in the pool",
			},
			[]string{"pool_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "active_workers",
				Help:      "Number of workers currently executing a task",
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "queued_tasks",
				Help:      "Number of tasks waiting for a worker",
			},
			[]string{"pool_name"},
		),

		ScheduledRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "scheduler",
				Name:      "runs_total",
				Help:      "Total number of scheduled job firings",
			},
			[]string{"job_name", "outcome"},
		),

		FeedItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "feed",
				Name:      "items_total",
				Help:      "Total number of items received from a feed",
			},
			[]string{"feed_name"},
		),

		FeedErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "feed",
				Name:      "errors_total",
				Help:      "Total number of feed read errors",
			},
			[]string{"feed_name"},
		),
	}
}

// StatsSource is anything that reports queue statistics, such as a
// *queue.BlockingQueue.
type StatsSource interface {
	Stats() queue.Stats
}

// RegisterQueue exports the statistics of a standalone queue under the
// given name. The collector reads src on every scrape.
func (r *Registry) RegisterQueue(name string, src StatsSource) error {
	return r.registerer.Register(NewQueueCollector(r.namespace, name, src))
}

// queueCollector is a prometheus.Collector over a StatsSource.
type queueCollector struct {
	src      StatsSource
	pending  *prometheus.Desc
	enqueued *prometheus.Desc
	dequeued *prometheus.Desc
	closed   *prometheus.Desc
}

// NewQueueCollector returns a collector exporting the stats of src.
func NewQueueCollector(namespace, name string, src StatsSource) prometheus.Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	labels := prometheus.Labels{"queue_name": name}
	fq := func(metric string) string {
		return prometheus.BuildFQName(namespace, "queue", metric)
	}

	return &queueCollector{
		src:      src,
		pending:  prometheus.NewDesc(fq("pending"), "Number of items waiting to be dequeued", nil, labels),
		enqueued: prometheus.NewDesc(fq("enqueued_total"), "Total number of items enqueued", nil, labels),
		dequeued: prometheus.NewDesc(fq("dequeued_total"), "Total number of items dequeued", nil, labels),
		closed:   prometheus.NewDesc(fq("closed"), "1 once the queue has been shut down", nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pending
	ch <- c.enqueued
	ch <- c.dequeued
	ch <- c.closed
}

// Collect implements prometheus.Collector.
func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	closed := 0.0
	if s.Closed {
		closed = 1
	}

	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(s.Pending))
	ch <- prometheus.MustNewConstMetric(c.enqueued, prometheus.CounterValue, float64(s.Enqueued))
	ch <- prometheus.MustNewConstMetric(c.dequeued, prometheus.CounterValue, float64(s.Dequeued))
	ch <- prometheus.MustNewConstMetric(c.closed, prometheus.GaugeValue, closed)
}
