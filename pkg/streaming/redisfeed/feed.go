package redisfeed

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/workq/pkg/common/errors"
	"github.com/vnykmshr/workq/pkg/common/validation"
	"github.com/vnykmshr/workq/pkg/metrics"
	"github.com/vnykmshr/workq/pkg/scheduling/workerpool"
)

// Handler processes one payload taken from the list. It runs on a pool worker.
type Handler func(payload string)

// Config holds configuration for a Redis-backed feed.
type Config struct {
	// Redis client used for BRPOP and requeue
	Redis redis.UniversalClient

	// Key is the Redis list the feed drains
	Key string

	// Name labels the feed in logs and metrics (defaults to Key)
	Name string

	// PollTimeout bounds each BRPOP so Run notices cancellation.
	// Redis only supports whole seconds here; shorter values are rounded up.
	PollTimeout time.Duration

	// RetryDelay is how long Run waits after a Redis error before polling again
	RetryDelay time.Duration

	// Pool executes the handler for each payload
	Pool *workerpool.Pool

	// Handler is called with each payload
	Handler Handler

	// Logger receives Redis and submission errors. If nil, logging is disabled.
	Logger *zap.Logger

	// Metrics, if set, counts items and errors labelled with Name
	Metrics *metrics.Registry
}

// DefaultConfig returns a feed configuration with default timings.
// Redis, Key, Pool and Handler must still be set.
func DefaultConfig() Config {
	return Config{
		PollTimeout: time.Second,
		RetryDelay:  500 * time.Millisecond,
	}
}

// Feed moves payloads from a Redis list into a worker pool.
type Feed struct {
	config Config
	logger *zap.Logger
}

// New creates a feed after validating cfg.
func New(cfg Config) (*Feed, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	cfg = applyConfigDefaults(cfg)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Feed{
		config: cfg,
		logger: logger.With(zap.String("feed", cfg.Name), zap.String("key", cfg.Key)),
	}, nil
}

// validateConfig validates the feed configuration.
func validateConfig(cfg Config) error {
	if err := validation.ValidateNotNil("redisfeed", "redis", cfg.Redis); err != nil {
		return err
	}
	if cfg.Key == "" {
		return gferrors.NewValidationError("redisfeed", "key", cfg.Key, "cannot be empty").
			WithHint("set the Redis list name to drain")
	}
	if err := validation.ValidateNotNil("redisfeed", "pool", cfg.Pool); err != nil {
		return err
	}
	if err := validation.ValidateNotNil("redisfeed", "handler", cfg.Handler); err != nil {
		return err
	}
	if cfg.PollTimeout < 0 {
		return gferrors.NewValidationError("redisfeed", "poll_timeout", cfg.PollTimeout, "cannot be negative")
	}
	return nil
}

// applyConfigDefaults sets default values for unspecified config fields.
func applyConfigDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = cfg.Key
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = defaults.PollTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
	return cfg
}

// Name returns the feed name used in logs and metrics.
func (f *Feed) Name() string {
	return f.config.Name
}

// Run drains the list until ctx is cancelled or the pool stops accepting
// work. Cancellation is noticed within one PollTimeout and returns nil.
//
// If the pool is closed the payload in hand is pushed back onto the list
// and Run returns an *errors.OperationError wrapping errors.ErrClosed.
// Redis errors are logged, counted, and retried after RetryDelay.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("feed started")
	defer f.logger.Info("feed stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		payload, ok, err := f.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, redis.ErrClosed) {
				return gferrors.NewOperationError("redisfeed", "run", err)
			}
			f.recordError(err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(f.config.RetryDelay):
			}
			continue
		}
		if !ok {
			continue
		}

		if err := f.dispatch(ctx, payload); err != nil {
			return err
		}
	}
}

// next blocks for at most PollTimeout waiting for a payload.
func (f *Feed) next(ctx context.Context) (string, bool, error) {
	res, err := f.config.Redis.BRPop(ctx, f.config.PollTimeout, f.config.Key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// BRPOP replies with [key, value]
	if len(res) != 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

func (f *Feed) dispatch(ctx context.Context, payload string) error {
	handler := f.config.Handler
	err := f.config.Pool.TryExecute(func() { handler(payload) })
	if err == nil {
		if m := f.config.Metrics; m != nil {
			m.FeedItems.WithLabelValues(f.config.Name).Inc()
		}
		return nil
	}

	// Put the payload back where BRPOP will find it first.
	if rerr := f.config.Redis.RPush(ctx, f.config.Key, payload).Err(); rerr != nil {
		f.logger.Error("failed to requeue payload", zap.String("payload", payload), zap.Error(rerr))
		f.recordError(rerr)
	}

	f.logger.Warn("pool rejected payload; stopping feed", zap.Error(err))
	return gferrors.NewOperationError("redisfeed", "run", err).
		WithContext("pool " + f.config.Pool.Name())
}

func (f *Feed) recordError(err error) {
	f.logger.Warn("redis error", zap.Error(err))
	if m := f.config.Metrics; m != nil {
		m.FeedErrors.WithLabelValues(f.config.Name).Inc()
	}
}
