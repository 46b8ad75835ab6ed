package transform

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/utkarsh5026/shardpool/pool"
)

// customPrefix is prepended to a custom transformation whose name collides
// with one already registered.
const customPrefix = "app_"

// Factory builds a transformation from the arguments of its configuration
// string.
type Factory[T any] func(args []string) (pool.TransformFunc[T], error)

type entry[T any] struct {
	usage   string
	factory Factory[T]
}

// Registry maps names to transformation factories. It is safe for
// concurrent use.
type Registry[T any] struct {
	kind    string
	mu      sync.RWMutex
	entries map[string]entry[T]
}

// NewRegistry creates an empty registry. kind names what it holds in
// error messages, for example "filter".
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:    kind,
		entries: make(map[string]entry[T]),
	}
}

// Register adds a factory under name. usage is the argument synopsis
// shown by the list command.
func (r *Registry[T]) Register(name, usage string, f Factory[T]) error {
	if name == "" || strings.ContainsFunc(name, unicode.IsSpace) {
		return fmt.Errorf("%w: %s name %q", ErrInvalidArgument, r.kind, name)
	}
	if f == nil {
		return fmt.Errorf("%w: %s %q has no factory", ErrInvalidArgument, r.kind, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s %q", ErrDuplicate, r.kind, name)
	}
	r.entries[name] = entry[T]{usage: usage, factory: f}
	return nil
}

// RegisterCustom adds a user supplied factory. When name is taken the
// factory is registered as "app_<name>" instead, and when that is taken
// too it is skipped. It reports the name used and whether it was added.
func (r *Registry[T]) RegisterCustom(name, usage string, f Factory[T]) (string, bool) {
	for _, candidate := range []string{name, customPrefix + name} {
		if err := r.Register(candidate, usage, f); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// Names returns the registered names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Usage returns the argument synopsis of name.
func (r *Registry[T]) Usage(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.usage, ok
}

// Build parses spec as "NAME ARG..." and runs the matching factory.
func (r *Registry[T]) Build(spec string) (pool.TransformFunc[T], error) {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty %s configuration", ErrInvalidArgument, r.kind)
	}

	r.mu.RLock()
	e, ok := r.entries[fields[0]]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s %q (available: %s)", ErrUnknown, r.kind, fields[0], strings.Join(r.Names(), ", "))
	}

	fn, err := e.factory(fields[1:])
	if err != nil {
		return nil, fmt.Errorf("build %s %q: %w", r.kind, fields[0], err)
	}
	return fn, nil
}
