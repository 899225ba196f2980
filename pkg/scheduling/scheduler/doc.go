/*
Package scheduler submits tasks to a worker pool at a point in time, on a fixed
interval, or on a cron schedule.

The scheduler only decides when a task is due. Execution always happens on a
workerpool.Pool, so the pool's guarantees (exactly-once execution, panic containment,
graceful drain on Close) apply to scheduled work unchanged.

Basic Usage:

	pool := workerpool.New(4)
	defer pool.Close()

	s := scheduler.NewWithConfig(scheduler.Config{Pool: pool})
	if err := s.Start(); err != nil {
		return err
	}
	defer func() { <-s.Stop() }()

	s.ScheduleAfter("warmup", warmCache, 5*time.Second)
	s.ScheduleRepeating("heartbeat", sendHeartbeat, 30*time.Second)
	s.ScheduleCron("nightly", "0 2 * * *", compact)

Cron Expressions:

Standard five-field expressions are accepted, as is an optional leading seconds field
and the usual descriptors:

	"15 2 * * *"       02:15 every day
	"0 30 9 * * 1-5"   09:30:00 on weekdays
	"@hourly"          top of every hour
	"@every 90s"       fixed interval

ValidateCron checks an expression without scheduling anything; configuration loading
uses it to reject bad jobs early.

Pool Ownership:

With Config.Pool unset the scheduler creates a small pool of its own and closes it on
Stop. With a caller-supplied pool, Stop only halts the tick loop and the caller closes
the pool. A due task that a closed pool rejects is logged at warn level and counted
under the "rejected" outcome; its schedule is kept.

Thread Safety:

All Scheduler methods are safe for concurrent use.
*/
package scheduler
