package scheduler

import (
	"go/parser"
	"go/token"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/workq/internal/testutil"
	"github.com/vnykmshr/workq/pkg/metrics"
	"github.com/vnykmshr/workq/pkg/scheduling/workerpool"
)

func TestScheduler_BasicScheduling(t *testing.T) {
	s := New()
	defer func() { <-s.Stop() }()

	testutil.AssertNoError(t, s.Start())

	var executed atomic.Int64
	task := func() { executed.Add(1) }

	testutil.AssertNoError(t, s.Schedule("now", task, time.Now()))
	testutil.AssertNoError(t, s.ScheduleAfter("later", task, 50*time.Millisecond))

	testutil.WaitForInt64(t, &executed, 2, time.Second)

	// One-time entries are removed once submitted.
	testutil.AssertEventually(t, func() bool { return len(s.List()) == 0 })
}

func TestScheduler_RepeatingTask(t *testing.T) {
	s := NewWithConfig(Config{TickInterval: 10 * time.Millisecond})
	defer func() { <-s.Stop() }()

	testutil.AssertNoError(t, s.Start())

	var executed atomic.Int64
	testutil.AssertNoError(t, s.ScheduleRepeating("repeat", func() { executed.Add(1) }, 30*time.Millisecond))

	testutil.Eventually(t, func() bool {
		return executed.Load() >= 3
	}, time.Second, 10*time.Millisecond)

	list := s.List()
	testutil.AssertEqual(t, len(list), 1)
	testutil.AssertEqual(t, list[0].Interval, 30*time.Millisecond)
	testutil.AssertEqual(t, list[0].Runs >= 3, true)
}

func TestScheduler_CronScheduling(t *testing.T) {
	s := New()
	defer func() { <-s.Stop() }()

	testutil.AssertNoError(t, s.Start())

	var executed atomic.Int64
	// Every second, using the optional seconds field
	testutil.AssertNoError(t, s.ScheduleCron("cron", "* * * * * *", func() { executed.Add(1) }))

	testutil.Eventually(t, func() bool {
		return executed.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)

	testutil.AssertEqual(t, s.List()[0].CronExpr, "* * * * * *")
}

func TestScheduler_SharedPool(t *testing.T) {
	pool := workerpool.New(2)

	reg := metrics.NewRegistry(prometheus.NewRegistry())
	s := NewWithConfig(Config{
		Pool:         pool,
		TickInterval: 10 * time.Millisecond,
		Metrics:      reg,
	})
	testutil.AssertNoError(t, s.Start())

	var executed atomic.Int64
	testutil.AssertNoError(t, s.Schedule("job", func() { executed.Add(1) }, time.Now()))
	testutil.WaitForInt64(t, &executed, 1, time.Second)

	<-s.Stop()

	// A caller-supplied pool stays open after Stop.
	testutil.AssertEqual(t, pool.IsClosed(), false)
	pool.Close()

	testutil.AssertEqual(t, promtest.ToFloat64(reg.ScheduledRuns.WithLabelValues("job", OutcomeSubmitted)), 1.0)
}

func TestScheduler_ClosedPoolRejects(t *testing.T) {
	pool := workerpool.New(1)
	pool.Close()

	reg := metrics.NewRegistry(prometheus.NewRegistry())
	s := NewWithConfig(Config{
		Pool:         pool,
		TickInterval: 10 * time.Millisecond,
		Metrics:      reg,
	})
	defer func() { <-s.Stop() }()
	testutil.AssertNoError(t, s.Start())

	testutil.AssertNoError(t, s.Schedule("orphan", func() {}, time.Now()))

	testutil.AssertEventually(t, func() bool {
		return promtest.ToFloat64(reg.ScheduledRuns.WithLabelValues("orphan", OutcomeRejected)) == 1
	})
}

func TestScheduler_TaskManagement(t *testing.T) {
	s := New()
	defer func() { <-s.Stop() }()

	task := func() {}

	testutil.AssertNoError(t, s.Schedule("dup", task, time.Now().Add(time.Hour)))
	testutil.AssertError(t, s.Schedule("dup", task, time.Now().Add(time.Hour)))

	testutil.AssertEqual(t, len(s.List()), 1)

	testutil.AssertEqual(t, s.Cancel("dup"), true)
	testutil.AssertEqual(t, s.Cancel("nonexistent"), false)
	testutil.AssertEqual(t, len(s.List()), 0)

	testutil.AssertNoError(t, s.Schedule("a", task, time.Now().Add(2*time.Hour)))
	testutil.AssertNoError(t, s.Schedule("b", task, time.Now().Add(time.Hour)))
	list := s.List()
	testutil.AssertEqual(t, list[0].ID, "b")
	testutil.AssertEqual(t, list[1].ID, "a")

	s.CancelAll()
	testutil.AssertEqual(t, len(s.List()), 0)
}

func TestScheduler_MaxTasks(t *testing.T) {
	s := NewWithConfig(Config{MaxTasks: 1})
	defer func() { <-s.Stop() }()

	testutil.AssertNoError(t, s.ScheduleAfter("one", func() {}, time.Hour))
	testutil.AssertError(t, s.ScheduleAfter("two", func() {}, time.Hour))
}

func TestScheduler_Lifecycle(t *testing.T) {
	s := New()

	testutil.AssertNoError(t, s.Start())
	testutil.AssertError(t, s.Start())

	<-s.Stop()
	<-s.Stop()

	testutil.AssertError(t, s.Start())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := New()
	testutil.AssertReturns(t, s.Stop(), time.Second)
}

func TestScheduler_InputValidation(t *testing.T) {
	s := New()
	defer func() { <-s.Stop() }()

	task := func() {}
	longID := string(make([]byte, 256))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"empty ID", func() error { return s.Schedule("", task, time.Now()) }},
		{"long ID", func() error { return s.Schedule(longID, task, time.Now()) }},
		{"nil task", func() error { return s.Schedule("test", nil, time.Now()) }},
		{"zero time", func() error { return s.Schedule("test", task, time.Time{}) }},
		{"negative interval", func() error { return s.ScheduleRepeating("test", task, -time.Second) }},
		{"empty cron expression", func() error { return s.ScheduleCron("test", "", task) }},
		{"invalid cron expression", func() error { return s.ScheduleCron("test", "invalid", task) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertError(t, tt.fn())
		})
	}
}

func TestValidateCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"15 2 * * *", false},
		{"0 30 9 * * 1-5", false},
		{"@hourly", false},
		{"@every 90s", false},
		{"@every 10s", false},
		{"", true},
		{"not a cron", true},
		{"61 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCron(tt.expr)
			testutil.AssertEqual(t, err != nil, tt.wantErr)
		})
	}
}

func TestScheduleCron_ReportsParseError(t *testing.T) {
	s := New()
	defer func() { <-s.Stop() }()

	err := s.ScheduleCron("bad", "61 * * * *", func() {})
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, strings.Contains(err.Error(), `invalid cron expression "61 * * * *"`), true)
	testutil.AssertEqual(t, len(s.List()), 0)

	err = s.ScheduleCron("empty", "", func() {})
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, len(s.List()), 0)
}

func TestPackageDocParses(t *testing.T) {
	f, err := parser.ParseFile(token.NewFileSet(), "doc.go", nil, parser.ParseComments)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, f.Name.Name, "scheduler")
	testutil.AssertEqual(t, f.Doc != nil && strings.Contains(f.Doc.Text(), "Cron Expressions"), true)
}
