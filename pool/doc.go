// Package pool runs a fixed set of workers over a stream of work units and
// collects their output into size-capped file sets, one per output channel.
//
// The primary type is Pool[T]. Each worker pulls units of type T from a
// bounded input queue, applies a caller-supplied TransformFunc and writes
// the values it returns into private shard files, one per channel. When
// the pool is closed every worker's shards are merged into the final
// output and removed.
//
// # Basic Usage
//
//	p, err := pool.New(
//	    func(ctx context.Context, doc Document, w pool.WorkerInfo) ([]any, error) {
//	        if len(doc.Text) == 0 {
//	            return nil, nil // no output for this unit
//	        }
//	        return []any{doc, Stats{ID: doc.ID, Len: len(doc.Text)}}, nil
//	    },
//	    "out", "corpus", []string{"docs", "stats"},
//	    pool.WithWorkerCount(8),
//	    pool.WithMaxObjectsPerFile(50000),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	for _, doc := range docs {
//	    if err := p.Feed(ctx, doc); err != nil {
//	        return err
//	    }
//	}
//	counts, err := p.Close() // counts[0] docs, counts[1] stats
//
// # Failure Isolation
//
// A unit whose transform returns an error or panics is logged and dropped;
// nothing it produced is written and the worker moves on. Failures are
// never retried. During Close a record that cannot be written to the final
// output is logged and counted as lost without stopping the merge; a record
// only counts as merged once the flush carrying it succeeded.
// WithOnUnitEnd and WithOnRecordMerged observe both kinds of outcome.
//
// # Backpressure
//
// Feed blocks while the input queue is full, so a producer can never run
// arbitrarily far ahead of the workers:
//
//	p, _ := pool.New(fn, dir, name, exts, pool.WithQueueSize(100))
//
// # Per-worker State
//
// Transformations that need expensive private state, like a loaded model,
// use NewPerWorker. The factory runs once on each worker:
//
//	p, err := pool.NewPerWorker(func(w pool.WorkerInfo) (pool.TransformFunc[Doc], error) {
//	    model, err := loadModel()
//	    if err != nil {
//	        return nil, err
//	    }
//	    return func(ctx context.Context, d Doc, _ pool.WorkerInfo) ([]any, error) {
//	        return []any{model.Apply(d)}, nil
//	    }, nil
//	}, dir, name, exts)
//
// # Logging
//
// With WithLogger, each worker gets a logger named worker-<id> whose
// entries are funneled through a single listener into the given logger.
//
// # Ordering
//
// Records of one worker keep their order within a channel. There is no
// ordering across workers: shards are merged in the order workers exit.
package pool
