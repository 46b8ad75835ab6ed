package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/shardpool/internal/logqueue"
	"github.com/utkarsh5026/shardpool/internal/queue"
)

// Pool runs a fixed set of workers over a stream of work units and merges
// their output into one file set per channel.
//
// A Pool is unstarted after construction. Start launches the workers, Feed
// hands them units and Close shuts them down, merges their shards and
// returns the pool to the unstarted state so it can be started again.
//
// Type parameters:
//   - T: The work unit type
type Pool[T any] struct {
	factory    TransformFactory[T]
	outputDir  string
	outputName string
	extensions []string
	cfg        *poolConfig
	logger     *zap.Logger

	mu          sync.RWMutex
	state       *runState[T]
	outputFiles [][]string
}

// runState exists only while the pool is running.
type runState[T any] struct {
	queue   queue.Queue[envelope[T]]
	results chan shardSet
	logs    *logqueue.Queue
	cancel  context.CancelFunc

	done    chan struct{} // closed once every worker has returned
	waitErr error

	// workers is cancelled together with done so pushes can select on it.
	workers     context.Context
	workersGone context.CancelFunc
}

// New creates a pool whose workers all run transform.
//
// Every channel i writes its final files into outputDir as
// <outputName>.<extensions[i]>, or <outputName>.part<N>.<extensions[i]>
// when WithMaxObjectsPerFile is set.
//
// Example:
//
//	p, err := pool.New(tokenize, "out", "corpus", []string{"tokens", "stats"},
//	    pool.WithWorkerCount(8),
//	    pool.WithMaxObjectsPerFile(50000),
//	)
func New[T any](transform TransformFunc[T], outputDir, outputName string, extensions []string, opts ...Option) (*Pool[T], error) {
	if transform == nil {
		return nil, &ConfigError{Field: "transform", Reason: "must not be nil"}
	}
	factory := func(WorkerInfo) (TransformFunc[T], error) {
		return transform, nil
	}
	return NewPerWorker(factory, outputDir, outputName, extensions, opts...)
}

// NewPerWorker creates a pool whose workers each build their own
// transformation once at startup, for transformations that hold private
// state such as loaded models.
func NewPerWorker[T any](factory TransformFactory[T], outputDir, outputName string, extensions []string, opts ...Option) (*Pool[T], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if factory == nil {
		return nil, &ConfigError{Field: "transform factory", Reason: "must not be nil"}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := validateOutput(outputName, extensions); err != nil {
		return nil, err
	}
	if outputDir == "" {
		outputDir = "."
	}
	if cfg.shardDir == "" {
		cfg.shardDir = outputDir
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	exts := make([]string, len(extensions))
	copy(exts, extensions)

	return &Pool[T]{
		factory:    factory,
		outputDir:  outputDir,
		outputName: outputName,
		extensions: exts,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Workers returns the configured number of workers.
func (p *Pool[T]) Workers() int { return p.cfg.workerCount }

// Channels returns the number of output channels.
func (p *Pool[T]) Channels() int { return len(p.extensions) }

// Running reports whether Start has been called without a matching Close.
func (p *Pool[T]) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state != nil
}

// Start creates the output directories and the input queue and launches
// the workers. Workers stop early if ctx is cancelled.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != nil {
		return ErrAlreadyStarted
	}

	for _, dir := range []string{p.outputDir, p.cfg.shardDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	st := &runState[T]{
		queue:   queue.New[envelope[T]](p.cfg.queueSize, p.cfg.useRing),
		results: make(chan shardSet, p.cfg.workerCount),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	st.workers, st.workersGone = context.WithCancel(context.Background())

	workerLogger := zap.NewNop()
	if p.cfg.logger != nil {
		st.logs = logqueue.New(logqueue.DefaultSize)
		st.logs.Listen(p.logger.Core())
		workerLogger = zap.New(st.logs.Core(p.logger.Core()))
	}

	var g errgroup.Group
	for id := range p.cfg.workerCount {
		w := &worker[T]{
			id:      id,
			pool:    p,
			queue:   st.queue,
			results: st.results,
			logger:  workerLogger.Named(fmt.Sprintf("worker-%d", id)).With(zap.Int("worker_id", id)),
		}
		g.Go(func() error {
			return w.run(ctx)
		})
	}

	go func() {
		st.waitErr = g.Wait()
		close(st.done)
		st.workersGone()
	}()

	p.state = st
	p.outputFiles = nil
	p.logger.Debug("pool started",
		zap.Int("workers", p.cfg.workerCount),
		zap.Int("channels", len(p.extensions)),
		zap.Int("queue_size", st.queue.Cap()),
	)
	return nil
}

// Feed hands unit to the workers. It blocks while the input queue is full
// and returns ctx.Err() if ctx ends first, or ErrWorkersStopped if every
// worker has exited, as after the Start context is cancelled.
func (p *Pool[T]) Feed(ctx context.Context, unit T) error {
	if isNil(unit) {
		return ErrInvalidUnit
	}

	// The read lock is held across the push so Close cannot queue its
	// sentinels ahead of a unit that was already accepted.
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := p.state
	if st == nil {
		return ErrNotRunning
	}
	if st.workers.Err() != nil {
		return ErrWorkersStopped
	}

	pushCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(st.workers, cancel)
	defer stop()

	err := st.queue.Push(pushCtx, envelope[T]{unit: unit})
	if err != nil && ctx.Err() == nil && st.workers.Err() != nil {
		return ErrWorkersStopped
	}
	return err
}

// Close sends one stop sentinel per worker, waits for every worker to
// exit, and merges their shard files into the final output in the order
// workers finished. Shard files are removed once merged. It returns, per
// channel, the number of records carried into the final output.
//
// The returned error reports workers that stopped abnormally and output
// files that could not be finalized. Counts are valid either way.
func (p *Pool[T]) Close() ([]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.state
	if st == nil {
		return nil, ErrNotRunning
	}

	// Workers that already quit on cancellation never pop their sentinel.
	for range p.cfg.workerCount {
		if err := st.queue.Push(st.workers, envelope[T]{stop: true}); err != nil {
			break
		}
	}

	<-st.done
	st.queue.Close()
	st.cancel()
	if st.logs != nil {
		st.logs.Stop()
	}
	if st.waitErr != nil {
		p.logger.Error("worker stopped abnormally", zap.Error(st.waitErr))
	}

	close(st.results)
	sets := make([]shardSet, 0, p.cfg.workerCount)
	for set := range st.results {
		sets = append(sets, set)
	}

	counts, files, mergeErr := p.merge(sets)
	p.outputFiles = files
	p.state = nil

	p.logger.Debug("pool closed", zap.Ints("counts", counts))
	return counts, errors.Join(st.waitErr, mergeErr)
}

// OutputFiles returns the final files written by the last Close, indexed
// by channel.
func (p *Pool[T]) OutputFiles() [][]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	files := make([][]string, len(p.outputFiles))
	for i, f := range p.outputFiles {
		files[i] = append([]string(nil), f...)
	}
	return files
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
