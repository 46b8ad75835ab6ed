package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/utkarsh5026/shardpool/chunk"
	"github.com/utkarsh5026/shardpool/split"
)

func runSplit(_ context.Context, args []string, stdout, stderr io.Writer) error {
	var rf runFlags
	fs := newFlagSet("split", "-folds K | -proportion P [flags] INPUT... OUTPUT_DIR", stderr)
	folds := fs.Int("folds", 0, "number of cross-validation folds")
	proportion := fs.Float64("proportion", 0, "share of records in the training split, in (0, 1)")
	batch := fs.Int("batch", 0, "shuffle batches of this size for an exact training size, 0 flips a coin per record")
	seed := fs.Uint64("seed", 0, "random seed, 0 picks one")
	rf.register(fs)

	inputs, outDir, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	var extensions []string
	switch {
	case *folds > 0 && *proportion != 0:
		return fmt.Errorf("%w: -folds and -proportion are mutually exclusive", errUsage)
	case *folds > 0:
		for i := range *folds {
			extensions = append(extensions, fmt.Sprintf("fold%d", i+1))
		}
	case *proportion > 0 && *proportion < 1:
		extensions = []string{"train", "test"}
	default:
		fs.Usage()
		return fmt.Errorf("%w: give -folds K > 0 or -proportion P in (0, 1)", errUsage)
	}

	s, err := newSession("split", fs, &rf, outDir, extensions, stdout, stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := chunk.NewReader[json.RawMessage](inputs, chunk.WithReaderLogger(s.logger.Logger))
	if err != nil {
		return err
	}
	defer r.Close()

	writers := make([]*chunk.Writer, len(extensions))
	targets := make([]split.Writer, len(extensions))
	for i, ext := range extensions {
		w, err := chunk.NewWriter(s.name,
			chunk.WithDir(s.outDir),
			chunk.WithExtension(ext),
			chunk.WithMaxRecords(s.cfg.MaxObjectsPerFile),
			chunk.WithBufferSize(s.cfg.BufferSize),
		)
		if err != nil {
			for _, opened := range writers[:i] {
				err = errors.Join(err, opened.Abort())
			}
			return err
		}
		writers[i] = w
		targets[i] = &countingWriter{w: w, channel: i, s: s}
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	if *seed == 0 {
		rng = nil
	}
	s.logger.Info("splitting corpus", zap.Strings("inputs", r.Paths()), zap.Strings("parts", extensions))

	if *folds > 0 {
		err = split.CrossValidation[json.RawMessage](r, targets, rng)
	} else {
		err = split.Proportional[json.RawMessage](r, [2]split.Writer{targets[0], targets[1]}, *proportion, *batch, rng)
	}

	counts := make([]int, len(writers))
	files := make([][]string, len(writers))
	if err != nil {
		for _, w := range writers {
			err = errors.Join(err, w.Abort())
		}
		return err
	}
	for i, w := range writers {
		if cerr := w.Close(); cerr != nil {
			return cerr
		}
		counts[i] = targets[i].(*countingWriter).n
		files[i] = w.Files()
	}
	return s.finish(counts, files)
}

// countingWriter counts the records of one split part into the session
// metrics.
type countingWriter struct {
	w       *chunk.Writer
	channel int
	s       *session
	n       int
}

func (c *countingWriter) Write(record any) error {
	err := c.w.Write(record)
	if err == nil {
		c.n++
	}
	c.s.metrics.RecordMerged(c.channel, err)
	return err
}
