// Package simulate runs a producer/consumer workload over a BlockingQueue and
// reports how the items were spread across consumers.
package simulate

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/workq/pkg/common/validation"
	"github.com/vnykmshr/workq/pkg/metrics"
	"github.com/vnykmshr/workq/pkg/streaming/queue"
)

// cancelCheckInterval is how many items a producer enqueues between context checks.
const cancelCheckInterval = 4096

// Config holds simulation parameters.
type Config struct {
	Producers int
	Consumers int

	// Items is split evenly across producers; any remainder is not produced.
	Items int

	Logger *zap.Logger

	// Metrics, if set, exports the queue under the name "simulate".
	Metrics *metrics.Registry
}

// Report summarises one run.
type Report struct {
	Producers      int
	Consumers      int
	Produced       int
	PerConsumer    []int
	Consumed       int
	FinalQueueSize int
	Elapsed        time.Duration
}

// Run starts the consumers, then the producers, waits for every producer,
// shuts the queue down and waits for the consumers to drain it.
//
// If ctx is cancelled producers stop early; the queue is still shut down and
// drained, and the partial report is returned with ctx's error.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := validation.ValidatePositive("simulate", "producers", cfg.Producers); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("simulate", "consumers", cfg.Consumers); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("simulate", "items", float64(cfg.Items)); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	q := queue.New[int]()
	if cfg.Metrics != nil {
		if err := cfg.Metrics.RegisterQueue("simulate", q); err != nil {
			logger.Warn("queue metrics not registered", zap.Error(err))
		}
	}

	perProducer := cfg.Items / cfg.Producers
	report := &Report{
		Producers:   cfg.Producers,
		Consumers:   cfg.Consumers,
		PerConsumer: make([]int, cfg.Consumers),
	}

	logger.Info("starting simulation",
		zap.Int("producers", cfg.Producers),
		zap.Int("consumers", cfg.Consumers),
		zap.Int("items", perProducer*cfg.Producers),
	)

	start := time.Now()

	var consumers errgroup.Group
	for id := 0; id < cfg.Consumers; id++ {
		consumers.Go(func() error {
			count := 0
			for {
				if _, ok := q.Dequeue(); !ok {
					break
				}
				count++
			}
			report.PerConsumer[id] = count
			logger.Debug("consumer finished", zap.Int("consumer", id), zap.Int("processed", count))
			return nil
		})
	}

	produced := make([]int, cfg.Producers)
	producers, pctx := errgroup.WithContext(ctx)
	for id := 0; id < cfg.Producers; id++ {
		producers.Go(func() error {
			base := id * perProducer
			for j := 0; j < perProducer; j++ {
				if j%cancelCheckInterval == 0 && pctx.Err() != nil {
					return pctx.Err()
				}
				q.Enqueue(base + j)
				produced[id]++
			}
			return nil
		})
	}

	runErr := producers.Wait()
	if runErr == nil {
		logger.Info("all producers finished writing")
	} else {
		logger.Warn("producers stopped early", zap.Error(runErr))
	}

	q.SignalShutdown()
	_ = consumers.Wait()

	report.Elapsed = time.Since(start)
	report.FinalQueueSize = q.Size()
	for _, n := range produced {
		report.Produced += n
	}
	for _, n := range report.PerConsumer {
		report.Consumed += n
	}

	logger.Info("simulation complete",
		zap.Int("consumed", report.Consumed),
		zap.Int("final_queue_size", report.FinalQueueSize),
		zap.Duration("elapsed", report.Elapsed),
	)

	return report, runErr
}

// Write prints the report in a human-readable form.
func (r *Report) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Producers: %d, Consumers: %d, Total Items: %d\n",
		r.Producers, r.Consumers, r.Produced); err != nil {
		return err
	}
	for id, n := range r.PerConsumer {
		if _, err := fmt.Fprintf(w, "Consumer %d processed %d items\n", id, n); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Consumed: %d\nFinal Queue Size: %d (should be 0)\nTime taken: %s\n",
		r.Consumed, r.FinalQueueSize, r.Elapsed.Round(time.Millisecond))
	return err
}
