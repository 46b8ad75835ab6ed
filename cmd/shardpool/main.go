// Command shardpool runs corpus transformations over a pool of workers and
// writes the results as size-capped JSON file sets.
//
// Usage:
//
//	shardpool filter     -f "wordcount 10 500" [flags] INPUT... OUTPUT_DIR
//	shardpool preprocess -p "default 10 3"     [flags] INPUT... OUTPUT_DIR
//	shardpool keyphrase  -topics FILE          [flags] INPUT... OUTPUT_DIR
//	shardpool split      -folds K | -proportion P [flags] INPUT... OUTPUT_DIR
//	shardpool list
//
// INPUT arguments may be doublestar glob patterns such as "corpus/**/*.json".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/fatih/color"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

var commands = []command{
	{"filter", "keep the documents accepted by one or more filters", runFilter},
	{"preprocess", "stem and clean document text", runPreprocess},
	{"keyphrase", "label topics with keyphrases voted by their top documents", runKeyphrase},
	{"split", "split a corpus into cross-validation folds or a train/test pair", runSplit},
	{"list", "show the registered filters, preprocessors and extractors", runList},
}

var (
	bold  = color.New(color.Bold)
	red   = color.New(color.FgRed)
	green = color.New(color.FgGreen)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "-help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	idx := slices.IndexFunc(commands, func(c command) bool { return c.name == args[0] })
	if idx < 0 {
		red.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	if err := commands[idx].run(ctx, args[1:], stdout, stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		red.Fprintf(stderr, "%s: %v\n", args[0], err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	bold.Fprintln(w, "shardpool - parallel corpus processing")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-11s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, `Run "shardpool COMMAND -h" for the flags of a command.`)
}
