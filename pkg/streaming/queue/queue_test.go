package queue

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/workq/internal/testutil"
	gferrors "github.com/vnykmshr/workq/pkg/common/errors"
)

func TestNew(t *testing.T) {
	q := New[int]()
	testutil.AssertEqual(t, q.Size(), 0)
	testutil.AssertEqual(t, q.IsClosed(), false)
	testutil.AssertEqual(t, q.Stats(), Stats{})
}

func TestGracefulDrain(t *testing.T) {
	q := New[string]()

	q.Enqueue("A")
	q.Enqueue("B")
	q.Enqueue("C")
	q.SignalShutdown()

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.Dequeue()
		testutil.AssertEqual(t, ok, true)
		testutil.AssertEqual(t, got, want)
	}

	got, ok := q.Dequeue()
	testutil.AssertEqual(t, ok, false)
	testutil.AssertEqual(t, got, "")
}

func TestSize(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}
	testutil.AssertEqual(t, q.Size(), 5)

	q.Dequeue()
	q.Dequeue()
	testutil.AssertEqual(t, q.Size(), 3)
}

func TestEnqueueAfterShutdownPanics(t *testing.T) {
	q := New[int]()
	q.SignalShutdown()

	recovered := testutil.AssertPanics(t, func() {
		q.Enqueue(1)
	})

	pv, ok := gferrors.IsProtocolViolation(recovered)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, pv.Op, "enqueue")
	testutil.AssertEqual(t, errors.Is(pv, gferrors.ErrClosed), true)

	// The rejected item must not have been queued.
	testutil.AssertEqual(t, q.Size(), 0)
}

func TestTryEnqueue(t *testing.T) {
	q := New[int]()
	testutil.AssertNoError(t, q.TryEnqueue(1))

	q.SignalShutdown()
	err := q.TryEnqueue(2)
	testutil.AssertEqual(t, err, gferrors.ErrClosed)

	got, ok := q.Dequeue()
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, got, 1)

	_, ok = q.Dequeue()
	testutil.AssertEqual(t, ok, false)
}

func TestTryDequeue(t *testing.T) {
	q := New[int]()

	_, ok := q.TryDequeue()
	testutil.AssertEqual(t, ok, false)

	q.Enqueue(42)
	got, ok := q.TryDequeue()
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, got, 42)

	q.SignalShutdown()
	_, ok = q.TryDequeue()
	testutil.AssertEqual(t, ok, false)
}

func TestShutdownIdempotent(t *testing.T) {
	q := New[int]()
	q.Enqueue(1)

	q.SignalShutdown()
	first := q.Stats()
	q.SignalShutdown()
	second := q.Stats()

	testutil.AssertEqual(t, first, second)
	testutil.AssertEqual(t, q.IsClosed(), true)

	got, ok := q.Dequeue()
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, got, 1)
}

func TestStats(t *testing.T) {
	q := New[int]()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)
	q.Dequeue()

	testutil.AssertEqual(t, q.Stats(), Stats{
		Pending:  2,
		Enqueued: 3,
		Dequeued: 1,
		Closed:   false,
	})

	q.SignalShutdown()
	q.Dequeue()
	q.Dequeue()
	q.Dequeue() // absent, not counted

	testutil.AssertEqual(t, q.Stats(), Stats{
		Pending:  0,
		Enqueued: 3,
		Dequeued: 3,
		Closed:   true,
	})
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New[int]()

	done := make(chan int, 1)
	go func() {
		v, ok := q.Dequeue()
		if !ok {
			v = -1
		}
		done <- v
	}()

	testutil.AssertBlocks(t, done, 100*time.Millisecond)

	q.Enqueue(7)
	testutil.AssertEqual(t, testutil.AssertReturns(t, done, time.Second), 7)

	q.SignalShutdown()
}

func TestDequeueBlocksUntilShutdown(t *testing.T) {
	q := New[int]()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()

	testutil.AssertBlocks(t, done, 100*time.Millisecond)

	q.SignalShutdown()
	testutil.AssertEqual(t, testutil.AssertReturns(t, done, time.Second), false)
}

func TestShutdownWakesAllConsumers(t *testing.T) {
	q := New[int]()

	const consumers = 8
	var exited atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, ok := q.Dequeue(); !ok {
					exited.Add(1)
					return
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.SignalShutdown()
	wg.Wait()

	testutil.AssertEqual(t, exited.Load(), int64(consumers))
}

func TestNoLossNoDuplication(t *testing.T) {
	q := New[int]()

	const (
		producers   = 4
		consumers   = 4
		perProducer = 5000
		total       = producers * perProducer
	)

	seen := make([]atomic.Int32, total)

	var consumerWg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for {
				v, ok := q.Dequeue()
				if !ok {
					return
				}
				seen[v].Add(1)
			}
		}()
	}

	var producerWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		producerWg.Add(1)
		go func(id int) {
			defer producerWg.Done()
			for j := 0; j < perProducer; j++ {
				q.Enqueue(id*perProducer + j)
			}
		}(p)
	}

	producerWg.Wait()
	q.SignalShutdown()
	consumerWg.Wait()

	for i := range seen {
		if n := seen[i].Load(); n != 1 {
			t.Fatalf("item %d dequeued %d times, want 1", i, n)
		}
	}
	testutil.AssertEqual(t, q.Size(), 0)
	testutil.AssertEqual(t, q.Stats().Dequeued, uint64(total))
}

func TestFIFOPerProducer(t *testing.T) {
	type item struct {
		producer int
		seq      int
	}

	q := New[item]()

	const (
		producers   = 4
		perProducer = 2000
	)

	var producerWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		producerWg.Add(1)
		go func(id int) {
			defer producerWg.Done()
			for j := 0; j < perProducer; j++ {
				q.Enqueue(item{producer: id, seq: j})
			}
		}(p)
	}

	producerWg.Wait()
	q.SignalShutdown()

	// A single consumer sees the global dequeue order.
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for {
		it, ok := q.Dequeue()
		if !ok {
			break
		}
		if it.seq <= last[it.producer] {
			t.Fatalf("producer %d: seq %d after %d", it.producer, it.seq, last[it.producer])
		}
		last[it.producer] = it.seq
	}

	for _, seq := range last {
		testutil.AssertEqual(t, seq, perProducer-1)
	}
}

func TestConcurrentProducersDuringDrain(t *testing.T) {
	q := New[int]()

	var rejected atomic.Int64
	var accepted atomic.Int64
	var wg sync.WaitGroup

	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if err := q.TryEnqueue(j); err != nil {
					rejected.Add(1)
					continue
				}
				accepted.Add(1)
			}
		}()
	}

	time.Sleep(time.Millisecond)
	q.SignalShutdown()
	wg.Wait()

	var drained int64
	for {
		if _, ok := q.Dequeue(); !ok {
			break
		}
		drained++
	}

	testutil.AssertEqual(t, drained, accepted.Load())
	testutil.AssertEqual(t, accepted.Load()+rejected.Load(), int64(4000))
}
