package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultBufferSize is the number of records a Writer holds in memory
// before flushing them to disk.
const DefaultBufferSize = 1000

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	dir        string
	extension  string
	maxRecords int
	bufferSize int
	format     Format
	indent     string
}

// WithDir sets the directory files are created in. Defaults to ".".
func WithDir(dir string) WriterOption {
	return func(cfg *writerConfig) {
		cfg.dir = dir
	}
}

// WithExtension sets the file extension, without the leading dot.
// Defaults to "json". Extensions ending in .gz or .zst are compressed.
func WithExtension(ext string) WriterOption {
	return func(cfg *writerConfig) {
		cfg.extension = ext
	}
}

// WithMaxRecords caps the number of records stored per file. A non-positive
// cap keeps everything in one file.
func WithMaxRecords(n int) WriterOption {
	return func(cfg *writerConfig) {
		cfg.maxRecords = n
	}
}

// WithBufferSize sets how many records are buffered between flushes.
func WithBufferSize(n int) WriterOption {
	return func(cfg *writerConfig) {
		cfg.bufferSize = n
	}
}

// WithFormat selects the file layout.
func WithFormat(f Format) WriterOption {
	return func(cfg *writerConfig) {
		cfg.format = f
	}
}

// WithIndent pretty-prints each record of a JSON array file.
func WithIndent(indent string) WriterOption {
	return func(cfg *writerConfig) {
		cfg.indent = indent
	}
}

// Writer spreads a stream of records over files holding at most
// maxRecords records each. A Writer is not safe for concurrent use.
type Writer struct {
	prefix string
	cfg    writerConfig

	files    []string
	sink     *fileSink
	part     int
	written  int // records in the open file
	unsynced int // records written since the last successful flush

	buffer [][]byte
	closed bool
}

// NewWriter validates the configuration and returns a Writer. No file is
// created until the first flush.
func NewWriter(prefix string, opts ...WriterOption) (*Writer, error) {
	cfg := writerConfig{
		dir:        ".",
		extension:  "json",
		bufferSize: DefaultBufferSize,
		format:     FormatJSONArray,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	switch {
	case prefix == "":
		return nil, &ConfigError{Field: "prefix", Reason: "must not be empty"}
	case cfg.bufferSize <= 0:
		return nil, &ConfigError{Field: "buffer size", Reason: fmt.Sprintf("must be positive, got %d", cfg.bufferSize)}
	case cfg.extension == "":
		return nil, &ConfigError{Field: "extension", Reason: "must not be empty"}
	case cfg.format != FormatJSONArray && cfg.format != FormatNDJSON:
		return nil, &ConfigError{Field: "format", Reason: fmt.Sprintf("unknown format %s", cfg.format)}
	}

	return &Writer{
		prefix: prefix,
		cfg:    cfg,
		buffer: make([][]byte, 0, cfg.bufferSize),
	}, nil
}

// Write serializes record and buffers it, flushing once the buffer is full.
// A failed flush returns a *FlushError counting every record it lost,
// record included.
func (w *Writer) Write(record any) error {
	if w.closed {
		return ErrWriterClosed
	}

	data, err := encodeRecord(record, w.cfg.indent)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	w.buffer = append(w.buffer, data)
	if len(w.buffer) >= w.cfg.bufferSize {
		return w.flush()
	}
	return nil
}

// Buffered returns the number of records waiting for the next flush.
func (w *Writer) Buffered() int {
	return len(w.buffer)
}

// Files returns every path created so far, in creation order.
func (w *Writer) Files() []string {
	files := make([]string, len(w.files))
	copy(files, w.files)
	return files
}

// Close flushes buffered records and finalizes the open file. Calling
// Close more than once is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.flush()
	if w.sink != nil {
		if ferr := w.finish(); ferr != nil {
			err = errors.Join(err, w.fail(ferr, 0))
		}
	}
	return err
}

// Abort closes the writer without flushing and removes every file it created.
func (w *Writer) Abort() error {
	w.closed = true
	w.buffer = w.buffer[:0]

	var err error
	if w.sink != nil {
		err = w.sink.Close()
		w.sink = nil
	}
	for _, path := range w.files {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}
	return err
}

// Use runs fn with w and closes w afterwards. When fn fails or panics every
// file w created is removed instead.
func Use(w *Writer, fn func(*Writer) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			_ = w.Abort()
			panic(r)
		}
	}()

	if err := fn(w); err != nil {
		return errors.Join(err, w.Abort())
	}
	return w.Close()
}

func (w *Writer) capped() bool {
	return w.cfg.maxRecords > 0
}

func (w *Writer) nextPath() string {
	name := w.prefix + "." + w.cfg.extension
	if w.capped() {
		name = fmt.Sprintf("%s.part%d.%s", w.prefix, w.part, w.cfg.extension)
	}
	return filepath.Join(w.cfg.dir, name)
}

func (w *Writer) open() error {
	w.part++
	path := w.nextPath()

	sink, err := createSink(path)
	if err != nil {
		w.part--
		return fmt.Errorf("create %s: %w", path, err)
	}
	w.files = append(w.files, path)
	w.sink = sink
	w.written = 0

	if w.cfg.format == FormatJSONArray {
		return sink.WriteString("[\n")
	}
	return nil
}

// finish terminates the open file.
func (w *Writer) finish() error {
	var err error
	if w.cfg.format == FormatJSONArray {
		if w.written > 0 {
			err = w.sink.WriteString("\n")
		}
		err = errors.Join(err, w.sink.WriteString("]\n"))
	}
	err = errors.Join(err, w.sink.Close())
	w.sink = nil
	if err == nil {
		w.unsynced = 0
	}
	return err
}

func (w *Writer) flush() error {
	pending := w.buffer
	w.buffer = w.buffer[:0]

	for len(pending) > 0 {
		if w.sink == nil {
			if err := w.open(); err != nil {
				return w.fail(err, len(pending))
			}
		}

		n := len(pending)
		if w.capped() {
			n = min(n, w.cfg.maxRecords-w.written)
		}
		for i, rec := range pending[:n] {
			if err := w.writeRecord(rec); err != nil {
				return w.fail(err, len(pending)-i)
			}
		}
		pending = pending[n:]

		if w.capped() && w.written >= w.cfg.maxRecords {
			if err := w.finish(); err != nil {
				return w.fail(err, len(pending))
			}
		}
	}

	if w.sink != nil {
		if err := w.sink.Flush(); err != nil {
			return w.fail(err, 0)
		}
		w.unsynced = 0
	}
	return nil
}

// fail wraps err in a FlushError counting the pending records plus those
// written since the last successful flush.
func (w *Writer) fail(err error, pending int) error {
	dropped := pending + w.unsynced
	w.unsynced = 0
	return &FlushError{Dropped: dropped, Err: err}
}

func (w *Writer) writeRecord(rec []byte) error {
	var err error
	switch w.cfg.format {
	case FormatNDJSON:
		err = errors.Join(w.sink.Write(rec), w.sink.WriteString("\n"))
	default:
		sep := "\t"
		if w.written > 0 {
			sep = ",\n\t"
		}
		if w.cfg.indent != "" {
			rec = bytes.ReplaceAll(rec, []byte("\n"), []byte("\n\t"))
		}
		err = errors.Join(w.sink.WriteString(sep), w.sink.Write(rec))
	}
	if err != nil {
		return err
	}
	w.written++
	w.unsynced++
	return nil
}
