package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/shardpool/chunk"
	"github.com/utkarsh5026/shardpool/internal/cpu"
	"github.com/utkarsh5026/shardpool/internal/queue"
)

// worker owns one shard writer per channel and shares nothing with other
// workers except the input queue and the results channel.
type worker[T any] struct {
	id      int
	pool    *Pool[T]
	queue   queue.Queue[envelope[T]]
	results chan<- shardSet
	logger  *zap.Logger

	writers []*chunk.Writer
}

// run is the worker main loop. It always publishes exactly one shardSet,
// even when it stops early.
func (w *worker[T]) run(ctx context.Context) (err error) {
	release, pinErr := cpu.Lock(w.id, w.pool.cfg.pinCPU)
	defer release()
	if pinErr != nil {
		w.logger.Debug("cpu pinning unavailable", zap.Error(pinErr))
	}

	defer func() {
		w.results <- shardSet{WorkerID: w.id, Files: w.closeWriters()}
	}()

	if err := w.openWriters(); err != nil {
		w.logger.Error("failed to create shard writers", zap.Error(err))
		w.discard(ctx, err)
		return err
	}

	info := WorkerInfo{ID: w.id, Logger: w.logger}
	transform, initErr := w.build(info)
	if initErr != nil {
		w.logger.Error("failed to initialize transform", zap.Error(initErr))
	}

	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("worker %d: %w", w.id, err)
		}
		env, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return fmt.Errorf("worker %d: %w", w.id, err)
		}
		if env.stop {
			w.logger.Debug("worker stopping", zap.Int("units", processed))
			return nil
		}

		if lim := w.pool.cfg.rateLimiter; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return fmt.Errorf("worker %d: %w", w.id, err)
			}
		}

		var unitErr error
		if initErr != nil {
			unitErr = &UnitError{WorkerID: w.id, Err: initErr}
		} else {
			unitErr = w.process(ctx, transform, env.unit, info)
		}
		if unitErr != nil {
			w.logger.Error("dropping unit", zap.Error(unitErr))
		}
		if hook := w.pool.cfg.onUnitEnd; hook != nil {
			hook(w.id, unitErr)
		}
		processed++
	}
}

// discard consumes units until this worker's sentinel so a worker that
// cannot write still keeps the queue moving. Every unit is reported failed.
func (w *worker[T]) discard(ctx context.Context, cause error) {
	for {
		env, err := w.queue.Pop(ctx)
		if err != nil || env.stop {
			return
		}
		if hook := w.pool.cfg.onUnitEnd; hook != nil {
			hook(w.id, &UnitError{WorkerID: w.id, Err: cause})
		}
	}
}

func (w *worker[T]) build(info WorkerInfo) (fn TransformFunc[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transform factory panic: %v", r)
		}
	}()

	fn, err = w.pool.factory(info)
	if err == nil && fn == nil {
		err = errors.New("transform factory returned nil")
	}
	return fn, err
}

// process runs transform on one unit and writes its values. Nothing is
// written for a unit whose transform fails or panics. A unit whose values
// could not all be written is reported failed.
func (w *worker[T]) process(ctx context.Context, transform TransformFunc[T], unit T, info WorkerInfo) error {
	values, err := processWithRecovery(ctx, transform, unit, info)
	if err != nil {
		return &UnitError{WorkerID: w.id, Err: err}
	}

	var writeErr error
	n := min(len(values), len(w.writers))
	for ch := range n {
		if values[ch] == nil {
			continue
		}
		if err := w.writers[ch].Write(values[ch]); err != nil {
			w.logger.Error("failed to write shard record",
				zap.Int("channel", ch),
				zap.Int("dropped", max(chunk.Dropped(err), 1)),
				zap.Error(err),
			)
			writeErr = errors.Join(writeErr, fmt.Errorf("channel %d: %w", ch, err))
		}
	}
	if writeErr != nil {
		return &UnitError{WorkerID: w.id, Err: writeErr}
	}
	return nil
}

func processWithRecovery[T any](
	ctx context.Context,
	transform TransformFunc[T],
	unit T,
	info WorkerInfo,
) (values []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("worker panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()

	return transform(ctx, unit, info)
}

func (w *worker[T]) openWriters() error {
	cfg := w.pool.cfg
	stamp := time.Now().UnixNano()

	w.writers = make([]*chunk.Writer, 0, len(w.pool.extensions))
	for ch := range w.pool.extensions {
		cw, err := chunk.NewWriter(
			shardPrefix(w.id, ch, stamp),
			chunk.WithDir(cfg.shardDir),
			chunk.WithExtension(shardExtension),
			chunk.WithBufferSize(cfg.bufferSize),
			chunk.WithFormat(chunk.FormatNDJSON),
		)
		if err != nil {
			return err
		}
		w.writers = append(w.writers, cw)
	}
	return nil
}

// closeWriters flushes every shard writer and returns the files each one
// produced, indexed by channel.
func (w *worker[T]) closeWriters() [][]string {
	files := make([][]string, len(w.pool.extensions))
	for ch, cw := range w.writers {
		if err := cw.Close(); err != nil {
			w.logger.Error("failed to close shard writer",
				zap.Int("channel", ch),
				zap.Int("dropped", chunk.Dropped(err)),
				zap.Error(err),
			)
		}
		files[ch] = cw.Files()
	}
	return files
}

const shardExtension = "temp"

// shardPrefix names a worker's private shard for one channel. The
// timestamp keeps names unique across runs sharing a directory.
func shardPrefix(workerID, channel int, stamp int64) string {
	return fmt.Sprintf(".%d-%d-%d", workerID, channel, stamp)
}
