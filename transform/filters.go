package transform

import (
	"context"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/utkarsh5026/shardpool/pool"
)

// Filters holds the document filters. A filter passes an accepted
// document through unchanged on channel 0.
var Filters = newFilters()

func newFilters() *Registry[Document] {
	r := NewRegistry[Document]("filter")
	mustRegister(r, "wordcount", "MIN [MAX]", newWordCountFilter)
	mustRegister(r, "contains", "TERM...", newContainsFilter)
	return r
}

func mustRegister[T any](r *Registry[T], name, usage string, f Factory[T]) {
	if err := r.Register(name, usage, f); err != nil {
		panic(err)
	}
}

// newWordCountFilter accepts documents whose word count lies in the
// inclusive range [MIN, MAX]. Without MAX there is no upper bound.
func newWordCountFilter(args []string) (pool.TransformFunc[Document], error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, invalidArg("wordcount", "expected MIN [MAX], got %d arguments", len(args))
	}
	minimum, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, invalidArg("wordcount", "MIN %q is not an integer", args[0])
	}
	maximum := math.MaxInt
	if len(args) == 2 {
		if maximum, err = strconv.Atoi(args[1]); err != nil {
			return nil, invalidArg("wordcount", "MAX %q is not an integer", args[1])
		}
	}
	if minimum >= maximum {
		return nil, invalidArg("wordcount", "MIN %d must be less than MAX %d", minimum, maximum)
	}

	return func(_ context.Context, doc Document, w pool.WorkerInfo) ([]any, error) {
		logDocument(w, doc)
		n := len(words(doc.Text))
		if n < minimum || n > maximum {
			return nil, rejected(doc.ID, "has %d words, outside [%d, %d]", n, minimum, maximum)
		}
		return []any{doc}, nil
	}, nil
}

// newContainsFilter accepts documents that contain at least one of the
// given terms as a whole word, ignoring case.
func newContainsFilter(args []string) (pool.TransformFunc[Document], error) {
	if len(args) == 0 {
		return nil, invalidArg("contains", "expected at least one TERM")
	}
	terms := make(map[string]struct{}, len(args))
	for _, t := range args {
		terms[strings.ToLower(t)] = struct{}{}
	}

	return func(_ context.Context, doc Document, w pool.WorkerInfo) ([]any, error) {
		logDocument(w, doc)
		for _, word := range words(doc.Text) {
			if _, ok := terms[word]; ok {
				return []any{doc}, nil
			}
		}
		return nil, rejected(doc.ID, "contains none of %v", args)
	}, nil
}

// Chain runs filters in order, feeding each the document the previous one
// accepted. The first rejection ends the chain.
func Chain(filters ...pool.TransformFunc[Document]) pool.TransformFunc[Document] {
	return func(ctx context.Context, doc Document, w pool.WorkerInfo) ([]any, error) {
		out := []any{doc}
		for _, f := range filters {
			var err error
			if out, err = f(ctx, doc, w); err != nil {
				return nil, err
			}
			if len(out) == 0 {
				return nil, nil
			}
			next, ok := out[0].(Document)
			if !ok {
				return out, nil
			}
			doc = next
		}
		return out, nil
	}
}

func logDocument(w pool.WorkerInfo, doc Document) {
	if w.Logger != nil {
		w.Logger.Debug("got document", zap.String("id", doc.ID))
	}
}
