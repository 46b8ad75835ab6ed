// Package config holds the settings the shardpool command passes to a pool
// run, loaded from defaults, an optional YAML file and SHARDPOOL_*
// environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/utkarsh5026/shardpool/pool"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SHARDPOOL"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds one run's settings.
//
// There are no envconfig default tags: defaults come from Default so a
// value read from the YAML file is not overwritten by a default.
type Config struct {
	Workers           int     `yaml:"workers" envconfig:"WORKERS"`
	QueueSize         int     `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
	BufferSize        int     `yaml:"buffer_size" envconfig:"BUFFER_SIZE"`
	MaxObjectsPerFile int     `yaml:"max_objects_per_file" envconfig:"MAX_OBJECTS_PER_FILE"`
	ShardDir          string  `yaml:"shard_dir" envconfig:"SHARD_DIR"`
	RingQueue         bool    `yaml:"ring_queue" envconfig:"RING_QUEUE"`
	PinCPU            bool    `yaml:"pin_cpu" envconfig:"PIN_CPU"`
	RateLimit         float64 `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	RateBurst         int     `yaml:"rate_burst" envconfig:"RATE_BURST"`
	Verbosity         int     `yaml:"verbosity" envconfig:"VERBOSITY"`
	MetricsFile       string  `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Workers:           runtime.GOMAXPROCS(0),
		QueueSize:         pool.DefaultQueueSize,
		BufferSize:        pool.DefaultBufferSize,
		MaxObjectsPerFile: -1,
		RateBurst:         1,
		Verbosity:         1,
	}
}

// Load applies the YAML file at path, when path is not empty, and then the
// environment on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Validate applies the same rules as pool construction so a bad setting is
// reported before any input is read.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be a positive integer, got %d", ErrInvalidConfig, c.Workers)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue size must be a positive integer, got %d", ErrInvalidConfig, c.QueueSize)
	case c.BufferSize <= 0:
		return fmt.Errorf("%w: buffer size must be a positive integer, got %d", ErrInvalidConfig, c.BufferSize)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate limit must not be negative, got %g", ErrInvalidConfig, c.RateLimit)
	case c.RateLimit > 0 && c.RateBurst < 1:
		return fmt.Errorf("%w: rate burst must be at least 1 when rate limiting, got %d", ErrInvalidConfig, c.RateBurst)
	case c.Verbosity < 0 || c.Verbosity > 2:
		return fmt.Errorf("%w: verbosity must be 0, 1 or 2, got %d", ErrInvalidConfig, c.Verbosity)
	}
	return nil
}

// PoolOptions translates the settings into pool options.
func (c *Config) PoolOptions() []pool.Option {
	opts := []pool.Option{
		pool.WithWorkerCount(c.Workers),
		pool.WithQueueSize(c.QueueSize),
		pool.WithBufferSize(c.BufferSize),
		pool.WithMaxObjectsPerFile(c.MaxObjectsPerFile),
		pool.WithCPUAffinity(c.PinCPU),
	}
	if c.ShardDir != "" {
		opts = append(opts, pool.WithShardDir(c.ShardDir))
	}
	if c.RingQueue {
		opts = append(opts, pool.WithRingQueue())
	}
	if c.RateLimit > 0 {
		opts = append(opts, pool.WithRateLimit(c.RateLimit, c.RateBurst))
	}
	return opts
}
