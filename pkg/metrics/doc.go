// Package metrics provides Prometheus instrumentation for workq components.
//
// # Overview
//
// The metrics package instruments:
//   - Worker pools (pool size, active workers, queued, submitted, completed and panicked tasks)
//   - Task timing (execution duration, time spent queued)
//   - Standalone blocking queues (pending, enqueued, dequeued, closed)
//   - Cron-driven submissions and Redis feeds
//
// # Quick Start
//
// Attach a registry to a pool through its config:
//
//	pool := workerpool.NewWithConfig(workerpool.Config{
//		WorkerCount: 4,
//		Name:        "connections",
//		Metrics:     metrics.DefaultRegistry,
//	})
//
// Export a standalone queue:
//
//	q := queue.New[Job]()
//	if err := metrics.DefaultRegistry.RegisterQueue("jobs", q); err != nil {
//		log.Fatal(err)
//	}
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation, for example in tests:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistry(reg)
//
// # Available Metrics
//
//   - workq_workerpool_tasks_submitted_total
//   - workq_workerpool_tasks_completed_total
//   - workq_workerpool_tasks_panicked_total
//   - workq_workerpool_task_duration_seconds
//   - workq_workerpool_task_queue_wait_seconds
//   - workq_workerpool_size
//   - workq_workerpool_active_workers
//   - workq_workerpool_queued_tasks
//   - workq_queue_pending, workq_queue_enqueued_total, workq_queue_dequeued_total, workq_queue_closed
//   - workq_scheduler_runs_total
//   - workq_feed_items_total, workq_feed_errors_total
//
// Pool metrics carry a pool_name label, queue metrics a queue_name label.
package metrics
