package pool

import (
	"context"

	"go.uber.org/zap"
)

// WorkerInfo identifies the worker running a transformation.
type WorkerInfo struct {
	// ID is in [0, workers).
	ID int
	// Logger is named after the worker and forwards to the pool's logger.
	Logger *zap.Logger
}

// TransformFunc turns one work unit into per-channel output values. Value i
// is written to channel i. Values beyond the declared channels are ignored,
// and a nil value or a short slice leaves the remaining channels untouched.
// Returning an error drops the unit.
type TransformFunc[T any] func(ctx context.Context, unit T, w WorkerInfo) ([]any, error)

// TransformFactory builds the transformation a worker uses for its whole
// lifetime. It runs once per worker, on the worker's goroutine, so any
// state the returned TransformFunc closes over is private to that worker.
type TransformFactory[T any] func(w WorkerInfo) (TransformFunc[T], error)

// envelope is what travels over the input queue. A stop envelope is the
// shutdown sentinel; each worker consumes exactly one.
type envelope[T any] struct {
	unit T
	stop bool
}

// shardSet is published by a worker when it exits. Files[i] lists the
// shard files holding channel i.
type shardSet struct {
	WorkerID int
	Files    [][]string
}
