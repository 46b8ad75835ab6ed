package main

import (
	"context"
	"fmt"
	"io"

	"github.com/utkarsh5026/shardpool/pool"
	"github.com/utkarsh5026/shardpool/transform"
)

type transformFunc = pool.TransformFunc[transform.Document]

func runFilter(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		rf      runFlags
		filters specList
	)
	fs := newFlagSet("filter", "-f FILTER [-f FILTER...] [flags] INPUT... OUTPUT_DIR", stderr)
	fs.Var(&filters, "f", `filter configuration such as "wordcount 10 500", repeatable`)
	rf.register(fs)

	inputs, outDir, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		fs.Usage()
		return fmt.Errorf("%w: at least one -f filter is required", errUsage)
	}

	return runDocuments(ctx, "filter", fs, &rf, inputs, outDir, []string{"filtered"}, func() (transformFunc, error) {
		return buildFilters(filters)
	}, stdout, stderr)
}

func buildFilters(specs []string) (transformFunc, error) {
	built := make([]transformFunc, 0, len(specs))
	for _, spec := range specs {
		fn, err := transform.Filters.Build(spec)
		if err != nil {
			return nil, err
		}
		built = append(built, fn)
	}
	if len(built) == 1 {
		return built[0], nil
	}
	return transform.Chain(built...), nil
}

func runPreprocess(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var rf runFlags
	fs := newFlagSet("preprocess", "[-p PREPROCESSOR] [flags] INPUT... OUTPUT_DIR", stderr)
	spec := fs.String("p", "default", `preprocessor configuration such as "default 10 3"`)
	rf.register(fs)

	inputs, outDir, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	return runDocuments(ctx, "preprocess", fs, &rf, inputs, outDir, []string{"preprocessed", "nonstemmed"}, func() (transformFunc, error) {
		return transform.Preprocessors.Build(*spec)
	}, stdout, stderr)
}
