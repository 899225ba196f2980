/*
Package scheduling provides task execution and submission primitives.

  - workerpool: Fixed worker pool for concurrent task execution
  - scheduler: Time-based and cron-driven submission into a worker pool

Worker Pool:

	pool := workerpool.New(4)
	defer pool.Close()

	pool.Execute(func() {
		// Do work
	})

Task Scheduler:

The scheduler never runs tasks itself; due tasks are handed to a pool.

	s := scheduler.NewWithConfig(scheduler.Config{Pool: pool})
	s.Start()
	defer func() { <-s.Stop() }()

	s.ScheduleAfter("warmup", task, time.Minute)
	s.ScheduleRepeating("poll", task, time.Hour)
	s.ScheduleCron("report", "0 9 * * MON-FRI", task) // Weekdays at 9 AM
*/
package scheduling
