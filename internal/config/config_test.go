package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/workq/internal/logging"
	gferrors "github.com/vnykmshr/workq/pkg/common/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Pool.Workers)
	assert.Equal(t, "127.0.0.1:7878", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.SleepDelay)
	assert.Equal(t, 1024, cfg.Server.ReadBuffer)
	assert.Equal(t, 1_000_000, cfg.Simulate.Items)
	assert.Equal(t, time.Second, cfg.Redis.PollTimeout)
	assert.Empty(t, cfg.Schedule.Jobs)

	require.NoError(t, cfg.Validate())
}

func TestLoadBytes_YAML(t *testing.T) {
	data := []byte(`
log:
  level: debug
pool:
  workers: 8
server:
  addr: "0.0.0.0:8080"
  sleep_delay: 250ms
schedule:
  jobs:
    - name: heartbeat
      spec: "@every 10s"
      message: "still here"
    - name: nightly
      spec: "0 2 * * *"
`)
	cfg, err := LoadBytes(data, FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Pool.Workers)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.SleepDelay)

	// Untouched keys keep their defaults.
	assert.Equal(t, "workq", cfg.Pool.Name)
	assert.Equal(t, 1024, cfg.Server.ReadBuffer)

	require.Len(t, cfg.Schedule.Jobs, 2)
	assert.Equal(t, JobConfig{Name: "heartbeat", Spec: "@every 10s", Message: "still here"}, cfg.Schedule.Jobs[0])
	assert.Equal(t, "nightly", cfg.Schedule.Jobs[1].Name)

	require.NoError(t, cfg.Validate())
}

func TestLoadBytes_JSON(t *testing.T) {
	data := []byte(`{"simulate": {"producers": 2, "consumers": 3, "items": 100}, "metrics": {"enabled": true, "addr": ":9100"}}`)

	cfg, err := LoadBytes(data, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, SimulateConfig{Producers: 2, Consumers: 3, Items: 100}, cfg.Simulate)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	require.NoError(t, cfg.Validate())
}

func TestLoadBytes_Empty(t *testing.T) {
	cfg, err := LoadBytes(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadBytes_Errors(t *testing.T) {
	_, err := LoadBytes([]byte("a: b"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadBytes([]byte("pool: [unclosed"), FormatYAML)
	assert.ErrorIs(t, err, ErrParseFailed)

	_, err = LoadBytes([]byte(`{"pool": {"workers": "many"}}`), FormatJSON)
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "workq.yml")
	require.NoError(t, os.WriteFile(path, []byte("pool:\n  workers: 2\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pool.Workers)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	_, err = Load(filepath.Join(dir, "workq.ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"a.yaml", FormatYAML, false},
		{"a.YML", FormatYAML, false},
		{"dir/a.json", FormatJSON, false},
		{"a.toml", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := DetectFormat(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"empty log level", func(c *Config) { c.Log.Level = "" }, "log.level"},
		{"warning alias", func(c *Config) { c.Log.Level = "warning" }, "log.level"},
		{"zero workers", func(c *Config) { c.Pool.Workers = 0 }, "pool.workers"},
		{"empty pool name", func(c *Config) { c.Pool.Name = "" }, "pool.name"},
		{"bad server addr", func(c *Config) { c.Server.Addr = "localhost" }, "server.addr"},
		{"negative sleep", func(c *Config) { c.Server.SleepDelay = -time.Second }, "server.sleep_delay"},
		{"zero read buffer", func(c *Config) { c.Server.ReadBuffer = 0 }, "server.read_buffer"},
		{"bad metrics addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "nope" }, "metrics.addr"},
		{"zero producers", func(c *Config) { c.Simulate.Producers = 0 }, "simulate.producers"},
		{"zero consumers", func(c *Config) { c.Simulate.Consumers = 0 }, "simulate.consumers"},
		{"negative items", func(c *Config) { c.Simulate.Items = -1 }, "simulate.items"},
		{"empty redis key", func(c *Config) { c.Redis.Key = "" }, "redis.key"},
		{"unnamed job", func(c *Config) {
			c.Schedule.Jobs = []JobConfig{{Spec: "@hourly"}}
		}, "schedule.jobs[0].name"},
		{"duplicate job", func(c *Config) {
			c.Schedule.Jobs = []JobConfig{{Name: "a", Spec: "@hourly"}, {Name: "a", Spec: "@daily"}}
		}, "schedule.jobs[1].name"},
		{"bad cron", func(c *Config) {
			c.Schedule.Jobs = []JobConfig{{Name: "a", Spec: "whenever"}}
		}, "schedule.jobs[0].spec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, gferrors.ErrInvalidConfiguration)

			var verr *gferrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidate_LogLevelsMatchLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG"} {
		cfg := Default()
		cfg.Log.Level = level
		require.NoError(t, cfg.Validate(), level)

		_, err := logging.New(level)
		require.NoError(t, err, level)
	}
}

func TestValidate_MetricsAddrIgnoredWhenDisabled(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Addr = "not-an-address"
	assert.NoError(t, cfg.Validate())
}
