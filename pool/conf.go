package pool

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultQueueSize is the depth of the input queue.
	DefaultQueueSize = 10000
	// DefaultBufferSize is how many records every shard and output writer
	// buffers between flushes.
	DefaultBufferSize = 1000
)

// Option is a functional option for configuring the pool.
type Option func(*poolConfig)

type poolConfig struct {
	workerCount   int
	queueSize     int
	bufferSize    int
	maxPerFile    int
	shardDir      string
	useRing       bool
	pinCPU        bool
	logger        *zap.Logger
	rateLimiter   *rate.Limiter
	onUnitEnd     func(workerID int, err error)
	onRecordMerge func(channel int, err error)
}

func defaultConfig() *poolConfig {
	return &poolConfig{
		workerCount: runtime.GOMAXPROCS(0),
		queueSize:   DefaultQueueSize,
		bufferSize:  DefaultBufferSize,
		maxPerFile:  -1,
	}
}

// WithWorkerCount sets the number of workers.
// If not specified, defaults to runtime.GOMAXPROCS(0).
func WithWorkerCount(count int) Option {
	return func(cfg *poolConfig) {
		cfg.workerCount = count
	}
}

// WithQueueSize sets the depth of the input queue. Feed blocks once this
// many units are waiting.
func WithQueueSize(size int) Option {
	return func(cfg *poolConfig) {
		cfg.queueSize = size
	}
}

// WithBufferSize sets the per-writer flush threshold.
func WithBufferSize(size int) Option {
	return func(cfg *poolConfig) {
		cfg.bufferSize = size
	}
}

// WithMaxObjectsPerFile caps the records per final output file. A
// non-positive value, the default, writes one file per channel.
func WithMaxObjectsPerFile(n int) Option {
	return func(cfg *poolConfig) {
		cfg.maxPerFile = n
	}
}

// WithShardDir sets where workers keep their temporary shard files.
// Defaults to the output directory.
func WithShardDir(dir string) Option {
	return func(cfg *poolConfig) {
		cfg.shardDir = dir
	}
}

// WithLogger enables logging. Worker entries are funneled through a single
// listener into this logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *poolConfig) {
		cfg.logger = logger
	}
}

// WithRateLimit caps how many units per second the pool as a whole starts
// processing. burst is the largest number started back to back.
// If not specified, no rate limiting is applied.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 units/sec with burst of 5
func WithRateLimit(unitsPerSecond float64, burst int) Option {
	return func(cfg *poolConfig) {
		if unitsPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(unitsPerSecond), burst)
		}
	}
}

// WithRingQueue backs the input queue with a lock-free ring buffer instead
// of a buffered channel. The ring's capacity is the queue size rounded up
// to a power of two.
func WithRingQueue() Option {
	return func(cfg *poolConfig) {
		cfg.useRing = true
	}
}

// WithCPUAffinity pins each worker's OS thread to CPU id % NumCPU where
// the platform supports it. Workers always run on their own OS thread.
func WithCPUAffinity(enabled bool) Option {
	return func(cfg *poolConfig) {
		cfg.pinCPU = enabled
	}
}

// WithOnUnitEnd registers a hook called by a worker after every unit with
// a nil error or the *UnitError that dropped it. The hook runs on worker
// goroutines and must be safe for concurrent use.
func WithOnUnitEnd(fn func(workerID int, err error)) Option {
	return func(cfg *poolConfig) {
		cfg.onUnitEnd = fn
	}
}

// WithOnRecordMerged registers a hook called during Close once for every
// shard record: with nil after the flush that wrote it to the final output
// succeeded, or with the *MergeError that lost it.
func WithOnRecordMerged(fn func(channel int, err error)) Option {
	return func(cfg *poolConfig) {
		cfg.onRecordMerge = fn
	}
}

func (cfg *poolConfig) validate() error {
	switch {
	case cfg.workerCount < 1:
		return &ConfigError{Field: "worker count", Reason: fmt.Sprintf("must be at least 1, got %d", cfg.workerCount)}
	case cfg.queueSize < 1:
		return &ConfigError{Field: "queue size", Reason: fmt.Sprintf("must be at least 1, got %d", cfg.queueSize)}
	case cfg.bufferSize <= 0:
		return &ConfigError{Field: "buffer size", Reason: fmt.Sprintf("must be positive, got %d", cfg.bufferSize)}
	}
	return nil
}

func validateOutput(outputName string, extensions []string) error {
	if outputName == "" {
		return &ConfigError{Field: "output name", Reason: "must not be empty"}
	}
	if len(extensions) == 0 {
		return &ConfigError{Field: "extensions", Reason: "at least one output channel is required"}
	}
	for i, ext := range extensions {
		if ext == "" {
			return &ConfigError{Field: "extensions", Reason: fmt.Sprintf("channel %d has an empty extension", i)}
		}
	}
	return nil
}
