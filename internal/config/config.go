// Package config loads workq settings from YAML or JSON on top of defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/vnykmshr/workq/internal/logging"
	gferrors "github.com/vnykmshr/workq/pkg/common/errors"
	"github.com/vnykmshr/workq/pkg/common/validation"
	"github.com/vnykmshr/workq/pkg/scheduling/scheduler"
)

// Format identifies a configuration file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither YAML nor JSON.
	ErrUnsupportedFormat = errors.New("config: unsupported format")

	// ErrLoadFailed is returned when the file cannot be read.
	ErrLoadFailed = errors.New("config: load failed")

	// ErrParseFailed is returned when the content cannot be parsed.
	ErrParseFailed = errors.New("config: parse failed")
)

// Config is the complete workq configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Pool     PoolConfig     `koanf:"pool"`
	Server   ServerConfig   `koanf:"server"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Simulate SimulateConfig `koanf:"simulate"`
	Redis    RedisConfig    `koanf:"redis"`
	Schedule ScheduleConfig `koanf:"schedule"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type PoolConfig struct {
	Workers int    `koanf:"workers"`
	Name    string `koanf:"name"`
}

type ServerConfig struct {
	Addr       string        `koanf:"addr"`
	SleepDelay time.Duration `koanf:"sleep_delay"`
	ReadBuffer int           `koanf:"read_buffer"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type SimulateConfig struct {
	Producers int `koanf:"producers"`
	Consumers int `koanf:"consumers"`
	Items     int `koanf:"items"`
}

type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Key         string        `koanf:"key"`
	PollTimeout time.Duration `koanf:"poll_timeout"`
}

type ScheduleConfig struct {
	Jobs []JobConfig `koanf:"jobs"`
}

// JobConfig is one cron job for the schedule command.
type JobConfig struct {
	Name    string `koanf:"name"`
	Spec    string `koanf:"spec"`
	Message string `koanf:"message"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Pool: PoolConfig{
			Workers: 4,
			Name:    "workq",
		},
		Server: ServerConfig{
			Addr:       "127.0.0.1:7878",
			SleepDelay: 5 * time.Second,
			ReadBuffer: 1024,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
		Simulate: SimulateConfig{
			Producers: 4,
			Consumers: 4,
			Items:     1_000_000,
		},
		Redis: RedisConfig{
			Addr:        "127.0.0.1:6379",
			Key:         "workq:jobs",
			PollTimeout: time.Second,
		},
	}
}

// Load reads path and overlays it on Default. An empty path yields the defaults.
// The format is taken from the file extension (.yaml, .yml or .json).
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	return LoadBytes(data, format)
}

// LoadBytes parses data in the given format and overlays it on Default.
// Keys absent from data keep their default values.
func LoadBytes(data []byte, format Format) (*Config, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	return cfg, nil
}

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return gferrors.NewValidationError("config", "log.level", c.Log.Level, "unknown level").
			WithHint("use debug, info, warn or error")
	}

	if err := validation.ValidatePositive("config", "pool.workers", c.Pool.Workers); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("config", "pool.name", c.Pool.Name); err != nil {
		return err
	}

	if err := validateAddr("server.addr", c.Server.Addr); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("config", "server.sleep_delay", c.Server.SleepDelay); err != nil {
		return err
	}
	if err := validation.ValidatePositive("config", "server.read_buffer", c.Server.ReadBuffer); err != nil {
		return err
	}

	if c.Metrics.Enabled {
		if err := validateAddr("metrics.addr", c.Metrics.Addr); err != nil {
			return err
		}
	}

	if err := validation.ValidatePositive("config", "simulate.producers", c.Simulate.Producers); err != nil {
		return err
	}
	if err := validation.ValidatePositive("config", "simulate.consumers", c.Simulate.Consumers); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("config", "simulate.items", float64(c.Simulate.Items)); err != nil {
		return err
	}

	if err := validation.ValidateNotEmpty("config", "redis.key", c.Redis.Key); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("config", "redis.poll_timeout", c.Redis.PollTimeout); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Schedule.Jobs))
	for i, job := range c.Schedule.Jobs {
		field := fmt.Sprintf("schedule.jobs[%d]", i)
		if job.Name == "" {
			return gferrors.NewValidationError("config", field+".name", job.Name, "cannot be empty")
		}
		if seen[job.Name] {
			return gferrors.NewValidationError("config", field+".name", job.Name, "duplicate job name")
		}
		seen[job.Name] = true
		if err := scheduler.ValidateCron(job.Spec); err != nil {
			return gferrors.NewValidationError("config", field+".spec", job.Spec, err.Error())
		}
	}

	return nil
}

func validateAddr(field, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return gferrors.NewValidationError("config", field, addr, "must be host:port").
			WithHint("for example 127.0.0.1:7878")
	}
	return nil
}
