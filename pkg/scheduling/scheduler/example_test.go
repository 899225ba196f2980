package scheduler_test

import (
	"fmt"
	"time"

	"github.com/vnykmshr/workq/pkg/scheduling/scheduler"
	"github.com/vnykmshr/workq/pkg/scheduling/workerpool"
)

// Example demonstrates feeding a worker pool from a scheduler
func Example() {
	pool := workerpool.New(2)

	s := scheduler.NewWithConfig(scheduler.Config{
		Pool:         pool,
		TickInterval: 10 * time.Millisecond,
	})
	if err := s.Start(); err != nil {
		fmt.Println(err)
		return
	}

	done := make(chan struct{})
	_ = s.ScheduleAfter("greeting", func() {
		fmt.Println("scheduled task ran")
		close(done)
	}, 20*time.Millisecond)

	<-done
	<-s.Stop()
	pool.Close()

	// Output: scheduled task ran
}

// ExampleValidateCron shows checking expressions before scheduling them
func ExampleValidateCron() {
	fmt.Println(scheduler.ValidateCron("*/15 * * * *") == nil)
	fmt.Println(scheduler.ValidateCron("every tuesday") == nil)
	// Output:
	// true
	// false
}
