package chunk

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ReaderOption configures a Reader.
type ReaderOption func(*readerConfig)

type readerConfig struct {
	logger *zap.Logger
	format Format
}

// formatDetect picks the layout of each file from its first byte.
const formatDetect Format = -1

// WithReaderLogger sets the logger that receives skipped-file and
// skipped-record errors.
func WithReaderLogger(logger *zap.Logger) ReaderOption {
	return func(cfg *readerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithReaderFormat fixes the layout of every file instead of detecting it.
// NDJSON files whose first record is an array need it.
func WithReaderFormat(f Format) ReaderOption {
	return func(cfg *readerConfig) {
		cfg.format = f
	}
}

// Reader replays the records of one or more files as a single sequence.
// Each record is decoded into R. A Reader is not safe for concurrent use.
type Reader[R any] struct {
	paths  []string
	logger *zap.Logger
	format Format

	next   int // index of the next file to open
	source *fileSource
	stream *recordStream
}

// NewReader keeps the paths that exist and fails with ErrNoValidSource
// when none do.
func NewReader[R any](paths []string, opts ...ReaderOption) (*Reader[R], error) {
	cfg := readerConfig{logger: zap.NewNop(), format: formatDetect}
	for _, opt := range opts {
		opt(&cfg)
	}
	switch cfg.format {
	case formatDetect, FormatJSONArray, FormatNDJSON:
	default:
		return nil, &ConfigError{Field: "format", Reason: fmt.Sprintf("unknown format %s", cfg.format)}
	}

	valid := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := resolvePath(p)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err != nil || info.IsDir() {
			continue
		}
		valid = append(valid, abs)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoValidSource, paths)
	}

	return &Reader[R]{paths: valid, logger: cfg.logger, format: cfg.format}, nil
}

func resolvePath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, p[1:])
	}
	return filepath.Abs(p)
}

// Paths returns the files the reader iterates over.
func (r *Reader[R]) Paths() []string {
	paths := make([]string, len(r.paths))
	copy(paths, r.paths)
	return paths
}

// Read returns the next record, or io.EOF once every file is exhausted.
func (r *Reader[R]) Read() (R, error) {
	var zero R
	for {
		if r.stream == nil {
			if r.next >= len(r.paths) {
				return zero, io.EOF
			}
			r.openNext()
			continue
		}

		raw, err := r.stream.next()
		if errors.Is(err, io.EOF) {
			r.closeCurrent()
			continue
		}
		if err != nil {
			r.skip(err)
			continue
		}

		var rec R
		if err := decodeRecord(raw, &rec); err != nil {
			r.logger.Error("skipping undecodable record",
				zap.String("path", r.paths[r.next-1]),
				zap.Error(err),
			)
			continue
		}
		return rec, nil
	}
}

// ReadBatch returns up to n records. It returns io.EOF only when no record
// was left to read.
func (r *Reader[R]) ReadBatch(n int) ([]R, error) {
	if n <= 0 {
		return nil, &ConfigError{Field: "batch size", Reason: fmt.Sprintf("must be positive, got %d", n)}
	}

	batch := make([]R, 0, n)
	for len(batch) < n {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return batch, err
		}
		batch = append(batch, rec)
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// Reset rewinds the reader to the first record of the first file.
func (r *Reader[R]) Reset() {
	r.closeCurrent()
	r.next = 0
}

// Records rewinds the reader and yields every record in order.
func (r *Reader[R]) Records() iter.Seq[R] {
	return func(yield func(R) bool) {
		r.Reset()
		for {
			rec, err := r.Read()
			if err != nil {
				return
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Count makes a full pass over the files and returns the number of
// readable records. The reader is rewound afterwards.
func (r *Reader[R]) Count() (int, error) {
	r.Reset()
	defer r.Reset()

	n := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Close releases the file currently being read.
func (r *Reader[R]) Close() error {
	if r.source == nil {
		return nil
	}
	err := r.source.Close()
	r.source, r.stream = nil, nil
	return err
}

func (r *Reader[R]) openNext() {
	path := r.paths[r.next]
	r.next++

	src, err := openSource(path)
	if err != nil {
		r.logSkip(path, err)
		return
	}
	stream, err := newRecordStream(src.buf, r.format)
	if err != nil {
		_ = src.Close()
		r.logSkip(path, err)
		return
	}
	r.source, r.stream = src, stream
}

func (r *Reader[R]) skip(err error) {
	r.logSkip(r.paths[r.next-1], err)
	r.closeCurrent()
}

func (r *Reader[R]) logSkip(path string, err error) {
	r.logger.Error("skipping unreadable source", zap.Error(&SourceError{Path: path, Err: err}))
}

func (r *Reader[R]) closeCurrent() {
	_ = r.Close()
}
