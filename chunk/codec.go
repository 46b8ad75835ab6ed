package chunk

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format selects the on-disk layout of a file written by a Writer.
type Format int

const (
	// FormatJSONArray stores every record of a file inside one root JSON array.
	FormatJSONArray Format = iota
	// FormatNDJSON stores one record per line.
	FormatNDJSON
)

func (f Format) String() string {
	switch f {
	case FormatJSONArray:
		return "json-array"
	case FormatNDJSON:
		return "ndjson"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Compression is derived from a file's suffix.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// CompressionFor reports the compression implied by path.
func CompressionFor(path string) Compression {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(path, ".zst"):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

const sinkBufferSize = 64 * 1024

var codec = sonic.ConfigStd

func encodeRecord(record any, indent string) ([]byte, error) {
	if indent != "" {
		return codec.MarshalIndent(record, "", indent)
	}
	return codec.Marshal(record)
}

func decodeRecord(raw []byte, v any) error {
	return codec.Unmarshal(raw, v)
}

// fileSink is an open output file with its optional compressor.
type fileSink struct {
	file *os.File
	comp io.WriteCloser
	buf  *bufio.Writer
}

type flusher interface {
	Flush() error
}

func createSink(path string) (*fileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	s := &fileSink{file: f}
	var w io.Writer = f

	switch CompressionFor(path) {
	case CompressionGzip:
		s.comp = gzip.NewWriter(f)
		w = s.comp
	case CompressionZstd:
		enc, err := zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		s.comp = enc
		w = enc
	}

	s.buf = bufio.NewWriterSize(w, sinkBufferSize)
	return s, nil
}

func (s *fileSink) WriteString(str string) error {
	_, err := s.buf.WriteString(str)
	return err
}

func (s *fileSink) Write(p []byte) error {
	_, err := s.buf.Write(p)
	return err
}

// Flush pushes buffered bytes through the compressor down to the file.
func (s *fileSink) Flush() error {
	if err := s.buf.Flush(); err != nil {
		return err
	}
	if f, ok := s.comp.(flusher); ok {
		return f.Flush()
	}
	return nil
}

func (s *fileSink) Close() error {
	err := s.buf.Flush()
	if s.comp != nil {
		err = errors.Join(err, s.comp.Close())
	}
	return errors.Join(err, s.file.Close())
}

// fileSource is an open input file with its optional decompressor.
type fileSource struct {
	file    *os.File
	release func()
	buf     *bufio.Reader
}

func openSource(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	s := &fileSource{file: f, release: func() {}}
	var r io.Reader = f

	switch CompressionFor(path) {
	case CompressionGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		s.release = func() { _ = zr.Close() }
		r = zr
	case CompressionZstd:
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		s.release = zr.Close
		r = zr
	}

	s.buf = bufio.NewReaderSize(r, sinkBufferSize)
	return s, nil
}

func (s *fileSource) Close() error {
	s.release()
	return s.file.Close()
}

// recordStream yields the raw JSON records of one source, either the
// elements of a root array or a sequence of top-level values.
type recordStream struct {
	dec   *json.Decoder
	array bool
	done  bool
}

// newRecordStream reads format, or detects it from the first byte when
// format is neither FormatJSONArray nor FormatNDJSON.
func newRecordStream(br *bufio.Reader, format Format) (*recordStream, error) {
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return &recordStream{done: true}, nil
	}
	if err != nil {
		return nil, err
	}

	s := &recordStream{dec: json.NewDecoder(br)}
	switch format {
	case FormatNDJSON:
		return s, nil
	case FormatJSONArray:
		if first != '[' {
			return nil, fmt.Errorf("expected a JSON array, found %q", first)
		}
	default:
		if first != '[' {
			return s, nil
		}
	}

	if _, err := s.dec.Token(); err != nil {
		return nil, err
	}
	s.array = true
	return s, nil
}

// next returns io.EOF once the stream is exhausted.
func (s *recordStream) next() (json.RawMessage, error) {
	if s.done {
		return nil, io.EOF
	}

	if s.array && !s.dec.More() {
		s.done = true
		tok, err := s.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if d, ok := tok.(json.Delim); !ok || d != ']' {
			return nil, fmt.Errorf("unexpected token %v at end of array", tok)
		}
		return nil, io.EOF
	}

	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		s.done = true
		if errors.Is(err, io.EOF) && s.array {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return raw, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
