// Package logging builds the logger used by the shardpool command.
package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config defines logger configuration.
type Config struct {
	// Dir receives a logs/ subdirectory holding the log files.
	Dir string
	// Name is the run name used in log file names.
	Name string
	// Verbosity 0 writes errors to file only, 1 adds info on the console,
	// 2 adds a debug file.
	Verbosity int
	// Development switches the console to colored human readable output.
	Development bool
}

// Logger wraps zap.Logger and owns the files it writes to.
type Logger struct {
	*zap.Logger
	files []*os.File
}

// New creates the tee of cores described by cfg:
//
//   - <Dir>/logs/log_<Name>.log at ERROR, always
//   - the console at INFO, when Verbosity >= 1
//   - <Dir>/logs/debug_log_<Name>.log at DEBUG, when Verbosity >= 2
func New(cfg Config) (*Logger, error) {
	logDir := filepath.Join(cfg.Dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &Logger{}
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig(false))

	errFile, err := l.open(filepath.Join(logDir, "log_"+cfg.Name+".log"))
	if err != nil {
		return nil, err
	}
	cores := []zapcore.Core{
		zapcore.NewCore(fileEncoder, zapcore.AddSync(errFile), zapcore.ErrorLevel),
	}

	if cfg.Verbosity >= 1 {
		cores = append(cores, zapcore.NewCore(
			consoleEncoder(cfg.Development),
			zapcore.Lock(os.Stderr),
			zapcore.InfoLevel,
		))
	}

	if cfg.Verbosity >= 2 {
		debugFile, err := l.open(filepath.Join(logDir, "debug_log_"+cfg.Name+".log"))
		if err != nil {
			_ = l.Close()
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(debugFile), zapcore.DebugLevel))
	}

	l.Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return l, nil
}

func (l *Logger) open(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.files = append(l.files, f)
	return f, nil
}

// Close flushes the logger and closes its files.
func (l *Logger) Close() error {
	var err error
	if l.Logger != nil {
		// Syncing stderr fails on some terminals; only file errors matter.
		_ = l.Sync()
	}
	for _, f := range l.files {
		err = errors.Join(err, f.Close())
	}
	l.files = nil
	return err
}

func consoleEncoder(development bool) zapcore.Encoder {
	if development {
		return zapcore.NewConsoleEncoder(encoderConfig(true))
	}
	cfg := encoderConfig(true)
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// encoderConfig returns encoder configuration for console or file output.
func encoderConfig(console bool) zapcore.EncoderConfig {
	if console {
		return zapcore.EncoderConfig{
			TimeKey:        "T",
			LevelKey:       "L",
			NameKey:        "N",
			CallerKey:      zapcore.OmitKey,
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "M",
			StacktraceKey:  "S",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		}
	}

	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
