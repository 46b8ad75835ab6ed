package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/oklog/ulid/v2"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/utkarsh5026/shardpool/internal/config"
	"github.com/utkarsh5026/shardpool/internal/logging"
	"github.com/utkarsh5026/shardpool/internal/metrics"
	"github.com/utkarsh5026/shardpool/pool"
)

var errUsage = errors.New("usage error")

// runFlags are shared by every command that writes output.
type runFlags struct {
	configPath  string
	outputName  string
	workers     int
	maxObjects  int
	logLevel    int
	metricsFile string
	force       bool
	quiet       bool
}

func (rf *runFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&rf.configPath, "config", "", "YAML settings file")
	fs.StringVar(&rf.outputName, "o", "", "name of the output files (default <command>_<ULID>)")
	fs.IntVar(&rf.workers, "w", 0, "number of workers (default GOMAXPROCS)")
	fs.IntVar(&rf.maxObjects, "m", -1, "maximum records per output file, <= 0 for a single file")
	fs.IntVar(&rf.logLevel, "log-level", 1, "0 errors to file only, 1 adds console info, 2 adds a debug file")
	fs.StringVar(&rf.metricsFile, "metrics-file", "", "write Prometheus metrics of the run to this file")
	fs.BoolVar(&rf.force, "force", false, "overwrite existing output files")
	fs.BoolVar(&rf.quiet, "q", false, "do not show a progress bar")
}

// settings layers the explicitly set flags over the config file and the
// environment.
func (rf *runFlags) settings(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(rf.configPath)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "w":
			cfg.Workers = rf.workers
		case "m":
			cfg.MaxObjectsPerFile = rf.maxObjects
		case "log-level":
			cfg.Verbosity = rf.logLevel
		case "metrics-file":
			cfg.MetricsFile = rf.metricsFile
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseArgs parses args and splits the positional arguments into the
// expanded inputs and the output directory.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	pos := fs.Args()
	if len(pos) < 2 {
		fs.Usage()
		return nil, "", fmt.Errorf("%w: expected INPUT... OUTPUT_DIR", errUsage)
	}
	inputs, err := expandInputs(pos[:len(pos)-1])
	if err != nil {
		return nil, "", err
	}
	return inputs, pos[len(pos)-1], nil
}

// expandInputs resolves glob patterns. Plain paths are kept as given so a
// missing file is reported by the reader.
func expandInputs(patterns []string) ([]string, error) {
	var inputs []string
	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[{") {
			inputs = append(inputs, pattern)
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("pattern %q matches no files", pattern)
		}
		inputs = append(inputs, matches...)
	}
	return inputs, nil
}

// session is one command run: its settings, logger, metrics and output
// location.
type session struct {
	task       string
	name       string
	outDir     string
	extensions []string
	cfg        *config.Config
	logger     *logging.Logger
	metrics    *metrics.Collector
	quiet      bool
	stdout     io.Writer
	stderr     io.Writer
	started    time.Time
}

func newSession(task string, fs *flag.FlagSet, rf *runFlags, outDir string, extensions []string, stdout, stderr io.Writer) (*session, error) {
	cfg, err := rf.settings(fs)
	if err != nil {
		return nil, err
	}

	name := rf.outputName
	if name == "" {
		name = task + "_" + ulid.Make().String()
	}
	if outDir, err = filepath.Abs(outDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if !rf.force {
		if existing := existingOutputs(outDir, name, extensions); len(existing) > 0 {
			return nil, fmt.Errorf("output files already exist, use -force to overwrite: %s", strings.Join(existing, ", "))
		}
	}

	logger, err := logging.New(logging.Config{
		Dir:         outDir,
		Name:        name,
		Verbosity:   cfg.Verbosity,
		Development: !color.NoColor,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		task:       task,
		name:       name,
		outDir:     outDir,
		extensions: extensions,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics.New(extensions),
		quiet:      rf.quiet,
		stdout:     stdout,
		stderr:     stderr,
		started:    time.Now(),
	}, nil
}

// existingOutputs lists files in dir that a run named name would replace.
func existingOutputs(dir, name string, extensions []string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var found []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), name+".") {
			continue
		}
		for _, ext := range extensions {
			if strings.HasSuffix(e.Name(), "."+ext) {
				found = append(found, e.Name())
				break
			}
		}
	}
	return found
}

func (s *session) Close() error {
	return s.logger.Close()
}

// poolOptions returns the pool configuration of the session.
func (s *session) poolOptions() []pool.Option {
	opts := append(s.cfg.PoolOptions(), pool.WithLogger(s.logger.Logger))
	return append(opts, s.metrics.Options()...)
}

// progress returns a bar counting fed units, or nil when quiet.
func (s *session) progress(description string) *progressbar.ProgressBar {
	if s.quiet {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionEnableColorCodes(!color.NoColor),
	)
}

// runPool starts a pool over fn, lets feed push units into it and closes
// it. It returns the per-channel record counts and final files.
func runPool[T any](ctx context.Context, s *session, fn pool.TransformFunc[T], feed func(push func(T) error) error) ([]int, [][]string, error) {
	p, err := pool.New(fn, s.outDir, s.name, s.extensions, s.poolOptions()...)
	if err != nil {
		return nil, nil, err
	}
	if err := p.Start(ctx); err != nil {
		return nil, nil, err
	}

	bar := s.progress(s.task)
	push := func(unit T) error {
		if err := p.Feed(ctx, unit); err != nil {
			return err
		}
		s.metrics.Fed()
		if bar != nil {
			_ = bar.Add(1)
		}
		return nil
	}

	feedErr := feed(push)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(s.stderr)
	}
	if feedErr != nil {
		s.logger.Error("feeding stopped early", zap.Error(feedErr))
	}

	counts, closeErr := p.Close()
	s.metrics.Observe(p.Workers(), time.Since(s.started))
	if err := errors.Join(feedErr, closeErr); err != nil {
		return counts, p.OutputFiles(), err
	}
	return counts, p.OutputFiles(), nil
}

// finish writes the metrics file and prints the summary table.
func (s *session) finish(counts []int, files [][]string) error {
	if s.cfg.MetricsFile != "" {
		if err := s.metrics.WriteFile(s.cfg.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	fmt.Fprintln(s.stdout)
	bold.Fprintf(s.stdout, "%s finished: %s\n", s.task, s.name)

	table := tablewriter.NewWriter(s.stdout)
	table.Header("Channel", "Records", "Files")
	for ch, ext := range s.extensions {
		var names []string
		if ch < len(files) {
			for _, f := range files[ch] {
				names = append(names, filepath.Base(f))
			}
		}
		count := 0
		if ch < len(counts) {
			count = counts[ch]
		}
		_ = table.Append(ext, fmt.Sprint(count), strings.Join(names, "\n"))
	}
	if err := table.Render(); err != nil {
		return err
	}

	green.Fprintf(s.stdout, "done in %s, output in %s\n", time.Since(s.started).Round(time.Millisecond), s.outDir)
	return nil
}
