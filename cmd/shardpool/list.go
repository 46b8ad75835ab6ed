package main

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/utkarsh5026/shardpool/transform"
)

type registry interface {
	Names() []string
	Usage(name string) (string, bool)
}

func runList(_ context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("list", "", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	table := tablewriter.NewWriter(stdout)
	table.Header("Kind", "Name", "Arguments")
	for _, r := range []struct {
		kind string
		reg  registry
	}{
		{"filter", transform.Filters},
		{"preprocessor", transform.Preprocessors},
		{"extractor", transform.Extractors},
	} {
		for _, name := range r.reg.Names() {
			usage, _ := r.reg.Usage(name)
			_ = table.Append(r.kind, name, usage)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
