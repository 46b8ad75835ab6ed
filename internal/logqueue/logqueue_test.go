package logqueue

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestQueue_ForwardsEntries(t *testing.T) {
	sink, logs := observer.New(zapcore.DebugLevel)
	q := New(4)
	q.Listen(sink)

	logger := zap.New(q.Core(zapcore.DebugLevel)).Named("worker-3").With(zap.Int("worker_id", 3))
	logger.Info("unit done", zap.String("unit", "a"))
	logger.Error("unit failed")
	q.Stop()

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}
	first := logs.All()[0]
	if first.LoggerName != "worker-3" {
		t.Errorf("expected logger name worker-3, got %q", first.LoggerName)
	}
	ctx := first.ContextMap()
	if ctx["worker_id"] != int64(3) || ctx["unit"] != "a" {
		t.Errorf("fields not forwarded: %v", ctx)
	}
	if logs.All()[1].Level != zapcore.ErrorLevel {
		t.Errorf("expected error level, got %v", logs.All()[1].Level)
	}
}

func TestQueue_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		coreLevel zapcore.Level
		sinkLevel zapcore.Level
		want      int
	}{
		{"everything", zapcore.DebugLevel, zapcore.DebugLevel, 3},
		{"worker side filter", zapcore.WarnLevel, zapcore.DebugLevel, 1},
		{"sink side filter", zapcore.DebugLevel, zapcore.InfoLevel, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, logs := observer.New(tt.sinkLevel)
			q := New(8)
			q.Listen(sink)

			logger := zap.New(q.Core(tt.coreLevel))
			logger.Debug("d")
			logger.Info("i")
			logger.Error("e")
			q.Stop()

			if logs.Len() != tt.want {
				t.Errorf("expected %d entries, got %d", tt.want, logs.Len())
			}
		})
	}
}

func TestQueue_ConcurrentWorkers(t *testing.T) {
	sink, logs := observer.New(zapcore.InfoLevel)
	q := New(2)
	q.Listen(sink)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logger := zap.New(q.Core(zapcore.InfoLevel)).Named(fmt.Sprintf("worker-%d", id))
			for i := range perWorker {
				logger.Info("tick", zap.Int("i", i))
			}
		}(w)
	}
	wg.Wait()
	q.Stop()

	if logs.Len() != workers*perWorker {
		t.Errorf("expected %d entries, got %d", workers*perWorker, logs.Len())
	}
}

func TestQueue_DropsAfterStop(t *testing.T) {
	sink, logs := observer.New(zapcore.InfoLevel)
	q := New(4)
	q.Listen(sink)
	logger := zap.New(q.Core(zapcore.InfoLevel))

	logger.Info("before")
	q.Stop()
	q.Stop()
	logger.Info("after")

	if logs.Len() != 1 || logs.All()[0].Message != "before" {
		t.Errorf("expected only the entry logged before Stop, got %v", logs.All())
	}
}

func TestQueue_StopWithoutListener(t *testing.T) {
	q := New(4)
	zap.New(q.Core(zapcore.InfoLevel)).Info("buffered")
	q.Stop()
}
