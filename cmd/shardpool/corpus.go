package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/utkarsh5026/shardpool/chunk"
	"github.com/utkarsh5026/shardpool/transform"
)

// specList collects a repeatable flag.
type specList []string

func (l *specList) String() string { return strings.Join(*l, "; ") }

func (l *specList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func newFlagSet(name, synopsis string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: shardpool %s %s\n\nFlags:\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// feedDocuments pushes every document of the inputs until ctx is done.
func feedDocuments(ctx context.Context, s *session, inputs []string, push func(transform.Document) error) error {
	r, err := chunk.NewReader[transform.Document](inputs, chunk.WithReaderLogger(s.logger.Logger))
	if err != nil {
		return err
	}
	defer r.Close()

	s.logger.Info("reading corpus", zap.Strings("inputs", r.Paths()))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := push(doc); err != nil {
			return err
		}
	}
}

// runDocuments is the common body of the commands that run a document
// transformation over a corpus.
func runDocuments(ctx context.Context, task string, fs *flag.FlagSet, rf *runFlags, inputs []string, outDir string,
	extensions []string, fn func() (transformFunc, error), stdout, stderr io.Writer) error {
	transformation, err := fn()
	if err != nil {
		return err
	}

	s, err := newSession(task, fs, rf, outDir, extensions, stdout, stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	counts, files, err := runPool(ctx, s, transformation, func(push func(transform.Document) error) error {
		return feedDocuments(ctx, s, inputs, push)
	})
	if err != nil {
		return err
	}
	return s.finish(counts, files)
}
