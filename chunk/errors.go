package chunk

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every ConfigError.
	ErrInvalidConfig = errors.New("invalid chunk configuration")

	// ErrNoValidSource is returned by NewReader when none of the given paths exist.
	ErrNoValidSource = errors.New("no valid source files could be located")

	// ErrWriterClosed is returned when writing to a closed or aborted Writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// ConfigError reports an invalid construction parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// SourceError describes a source file that could not be opened or parsed.
// Readers log it and move on to the next file.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// FlushError reports a failed flush together with the number of records
// that did not reach the file: those still buffered and those written since
// the last successful flush.
type FlushError struct {
	Dropped int
	Err     error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush failed, %d records dropped: %v", e.Dropped, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// Dropped sums the records lost according to every FlushError in err's tree.
func Dropped(err error) int {
	switch e := err.(type) {
	case nil:
		return 0
	case *FlushError:
		return e.Dropped
	case interface{ Unwrap() []error }:
		n := 0
		for _, inner := range e.Unwrap() {
			n += Dropped(inner)
		}
		return n
	case interface{ Unwrap() error }:
		return Dropped(e.Unwrap())
	}
	return 0
}
