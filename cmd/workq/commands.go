package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/workq/internal/config"
	"github.com/vnykmshr/workq/internal/server"
	"github.com/vnykmshr/workq/internal/simulate"
	gferrors "github.com/vnykmshr/workq/pkg/common/errors"
	"github.com/vnykmshr/workq/pkg/scheduling/scheduler"
	"github.com/vnykmshr/workq/pkg/streaming/redisfeed"
)

func poolFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "number of pool workers",
		},
		&cli.BoolFlag{
			Name:  "metrics",
			Usage: "serve Prometheus metrics on metrics.addr",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "metrics listen address",
		},
	}
}

func applyPoolFlags(cfg *config.Config, cmd *cli.Command) {
	if cmd.IsSet("workers") {
		cfg.Pool.Workers = cmd.Int("workers")
	}
	if cmd.IsSet("metrics") {
		cfg.Metrics.Enabled = cmd.Bool("metrics")
	}
	if cmd.IsSet("metrics-addr") {
		cfg.Metrics.Addr = cmd.String("metrics-addr")
	}
}

func redisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "redis-addr",
			Usage: "Redis address",
		},
		&cli.StringFlag{
			Name:  "key",
			Usage: "Redis list key",
		},
	}
}

func applyRedisFlags(cfg *config.Config, cmd *cli.Command) {
	if cmd.IsSet("redis-addr") {
		cfg.Redis.Addr = cmd.String("redis-addr")
	}
	if cmd.IsSet("key") {
		cfg.Redis.Key = cmd.String("key")
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "accept TCP connections and answer each one on the pool",
		Flags: append(poolFlags(),
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "TCP listen address",
			},
			&cli.DurationFlag{
				Name:  "sleep-delay",
				Usage: "delay before answering GET /sleep",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, applyPoolFlags, func(cfg *config.Config, cmd *cli.Command) {
				if cmd.IsSet("addr") {
					cfg.Server.Addr = cmd.String("addr")
				}
				if cmd.IsSet("sleep-delay") {
					cfg.Server.SleepDelay = cmd.Duration("sleep-delay")
				}
			})
			if err != nil {
				return err
			}
			defer e.close()
			return runServe(ctx, e)
		},
	}
}

func runServe(ctx context.Context, e *env) error {
	pool, err := e.newPool()
	if err != nil {
		return err
	}
	defer pool.Close()

	srv, err := server.New(server.Config{
		Addr:       e.cfg.Server.Addr,
		SleepDelay: e.cfg.Server.SleepDelay,
		ReadBuffer: e.cfg.Server.ReadBuffer,
		Logger:     e.logger,
	}, pool)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error { return e.serveMetrics(gctx) })
	return g.Wait()
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "run producers and consumers over one blocking queue",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "producers", Aliases: []string{"p"}, Usage: "number of producers"},
			&cli.IntFlag{Name: "consumers", Aliases: []string{"n"}, Usage: "number of consumers"},
			&cli.IntFlag{Name: "items", Aliases: []string{"i"}, Usage: "total items to produce"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, func(cfg *config.Config, cmd *cli.Command) {
				if cmd.IsSet("producers") {
					cfg.Simulate.Producers = cmd.Int("producers")
				}
				if cmd.IsSet("consumers") {
					cfg.Simulate.Consumers = cmd.Int("consumers")
				}
				if cmd.IsSet("items") {
					cfg.Simulate.Items = cmd.Int("items")
				}
			})
			if err != nil {
				return err
			}
			defer e.close()

			report, err := simulate.Run(ctx, simulate.Config{
				Producers: e.cfg.Simulate.Producers,
				Consumers: e.cfg.Simulate.Consumers,
				Items:     e.cfg.Simulate.Items,
				Logger:    e.logger,
				Metrics:   e.metrics,
			})
			if report != nil {
				if werr := report.Write(cmd.Root().Writer); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "submit cron jobs to the pool until interrupted",
		Flags: append(poolFlags(),
			&cli.StringSliceFlag{
				Name:    "job",
				Aliases: []string{"j"},
				Usage:   `extra job as "name=spec" (repeatable)`,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var parseErr error
			e, err := setup(cmd, applyPoolFlags, func(cfg *config.Config, cmd *cli.Command) {
				for _, raw := range cmd.StringSlice("job") {
					job, err := parseJob(raw)
					if err != nil {
						parseErr = err
						return
					}
					cfg.Schedule.Jobs = append(cfg.Schedule.Jobs, job)
				}
			})
			if parseErr != nil {
				return parseErr
			}
			if err != nil {
				return err
			}
			defer e.close()
			return runSchedule(ctx, e)
		},
	}
}

// parseJob parses "name=spec" into a job whose message is its name.
func parseJob(raw string) (config.JobConfig, error) {
	name, spec, ok := strings.Cut(raw, "=")
	name, spec = strings.TrimSpace(name), strings.TrimSpace(spec)
	if !ok || name == "" || spec == "" {
		return config.JobConfig{}, fmt.Errorf("invalid job %q, expected name=spec", raw)
	}
	return config.JobConfig{Name: name, Spec: spec, Message: name}, nil
}

func runSchedule(ctx context.Context, e *env) error {
	if len(e.cfg.Schedule.Jobs) == 0 {
		return fmt.Errorf("no jobs configured, add schedule.jobs or pass --job")
	}

	pool, err := e.newPool()
	if err != nil {
		return err
	}
	defer pool.Close()

	s := scheduler.NewWithConfig(scheduler.Config{
		Pool:    pool,
		Logger:  e.logger,
		Metrics: e.metrics,
	})

	for _, job := range e.cfg.Schedule.Jobs {
		err := s.ScheduleCron(job.Name, job.Spec, func() {
			e.logger.Info("job fired", zap.String("job", job.Name), zap.String("message", job.Message))
		})
		if err != nil {
			return fmt.Errorf("failed to schedule job %q: %w", job.Name, err)
		}
		e.logger.Info("job scheduled", zap.String("job", job.Name), zap.String("spec", job.Spec))
	}

	if err := s.Start(); err != nil {
		return err
	}
	defer func() { <-s.Stop() }()

	return e.serveMetricsUntilDone(ctx)
}

// serveMetricsUntilDone blocks until ctx is done, serving metrics meanwhile if enabled.
func (e *env) serveMetricsUntilDone(ctx context.Context) error {
	if err := e.serveMetrics(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func feedCommand() *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "drain a Redis list into the pool until interrupted",
		Flags: append(append(poolFlags(), redisFlags()...),
			&cli.DurationFlag{
				Name:  "poll-timeout",
				Usage: "BRPOP timeout per poll",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, applyPoolFlags, applyRedisFlags, func(cfg *config.Config, cmd *cli.Command) {
				if cmd.IsSet("poll-timeout") {
					cfg.Redis.PollTimeout = cmd.Duration("poll-timeout")
				}
			})
			if err != nil {
				return err
			}
			defer e.close()

			client := redis.NewClient(&redis.Options{Addr: e.cfg.Redis.Addr})
			defer client.Close()

			return runFeed(ctx, e, client)
		},
	}
}

func runFeed(ctx context.Context, e *env, client redis.UniversalClient) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = gferrors.ErrTimeout
		}
		return fmt.Errorf("failed to reach redis at %s: %w", e.cfg.Redis.Addr, err)
	}

	pool, err := e.newPool()
	if err != nil {
		return err
	}
	defer pool.Close()

	feed, err := redisfeed.New(redisfeed.Config{
		Redis:       client,
		Key:         e.cfg.Redis.Key,
		PollTimeout: e.cfg.Redis.PollTimeout,
		Pool:        pool,
		Logger:      e.logger,
		Metrics:     e.metrics,
		Handler: func(payload string) {
			e.logger.Info("payload processed", zap.String("payload", payload))
		},
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Run(gctx) })
	g.Go(func() error { return e.serveMetrics(gctx) })
	return g.Wait()
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "push payloads onto the Redis list",
		ArgsUsage: "<payload> [payload...]",
		Flags:     redisFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, applyRedisFlags)
			if err != nil {
				return err
			}
			defer e.close()

			payloads := cmd.Args().Slice()
			if len(payloads) == 0 {
				return fmt.Errorf("no payloads given")
			}

			client := redis.NewClient(&redis.Options{Addr: e.cfg.Redis.Addr})
			defer client.Close()

			pub, err := redisfeed.NewPublisher(client, e.cfg.Redis.Key)
			if err != nil {
				return err
			}

			n, err := pub.Publish(ctx, payloads...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.Root().Writer, "published %d payloads, %d waiting on %s\n", len(payloads), n, e.cfg.Redis.Key)
			return err
		},
	}
}
