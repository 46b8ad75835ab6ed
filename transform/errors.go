package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected marks a unit a filter or preprocessor refused.
	ErrRejected = errors.New("transform: unit rejected")

	// ErrUnknown is returned by Build for a name that is not registered.
	ErrUnknown = errors.New("transform: unknown transformation")

	// ErrInvalidArgument is returned when a configuration string carries
	// arguments the transformation cannot use.
	ErrInvalidArgument = errors.New("transform: invalid argument")

	// ErrDuplicate is returned by Register when the name is taken.
	ErrDuplicate = errors.New("transform: name already registered")
)

func rejected(id, format string, args ...any) error {
	return fmt.Errorf("%w: document %q %s", ErrRejected, id, fmt.Sprintf(format, args...))
}

func invalidArg(name, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidArgument, name, fmt.Sprintf(format, args...))
}
