package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/vnykmshr/workq/internal/config"
	"github.com/vnykmshr/workq/internal/logging"
	"github.com/vnykmshr/workq/pkg/metrics"
	"github.com/vnykmshr/workq/pkg/scheduling/workerpool"
)

// env is what every command needs: resolved configuration, a logger, and the
// metrics registry the command's components report into.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	gatherer *prometheus.Registry
	metrics  *metrics.Registry
}

// setup loads the configuration file, applies command-line overrides,
// validates the result and builds the logger.
func setup(cmd *cli.Command, overrides ...func(*config.Config, *cli.Command)) (*env, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	for _, override := range overrides {
		override(cfg, cmd)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Disabled metrics leave every component uninstrumented.
	mcfg := metrics.DefaultConfig()
	mcfg.Enabled = cfg.Metrics.Enabled
	mcfg.Registry = reg
	m := metrics.NewRegistryWithConfig(mcfg)

	return &env{
		cfg:      cfg,
		logger:   logger,
		gatherer: reg,
		metrics:  m,
	}, nil
}

func (e *env) close() {
	_ = e.logger.Sync()
}

// newPool builds the shared worker pool from the pool section.
func (e *env) newPool() (*workerpool.Pool, error) {
	return workerpool.NewWithConfigSafe(workerpool.Config{
		WorkerCount: e.cfg.Pool.Workers,
		Name:        e.cfg.Pool.Name,
		Logger:      e.logger,
		Metrics:     e.metrics,
	})
}

// serveMetrics exposes /metrics until ctx is done. It is a no-op when
// metrics are disabled.
func (e *env) serveMetrics(ctx context.Context) error {
	if !e.cfg.Metrics.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{Registry: e.gatherer}))

	srv := &http.Server{
		Addr:              e.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("metrics server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
