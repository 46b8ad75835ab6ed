package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name       string
		outputName string
		extensions []string
		opts       []Option
	}{
		{"zero workers", "out", []string{"json"}, []Option{WithWorkerCount(0)}},
		{"negative workers", "out", []string{"json"}, []Option{WithWorkerCount(-2)}},
		{"zero buffer", "out", []string{"json"}, []Option{WithBufferSize(0)}},
		{"zero queue", "out", []string{"json"}, []Option{WithQueueSize(0)}},
		{"no channels", "out", nil, nil},
		{"empty extension", "out", []string{"json", ""}, nil},
		{"empty output name", "", []string{"json"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(echo, t.TempDir(), tt.outputName, tt.extensions, tt.opts...)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected *ConfigError, got %T", err)
			}
		})
	}

	t.Run("nil transform", func(t *testing.T) {
		if _, err := New[int](nil, t.TempDir(), "out", []string{"json"}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestNew_Defaults(t *testing.T) {
	p, err := New(echo, "", "out", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Workers() < 1 {
		t.Errorf("expected at least one worker, got %d", p.Workers())
	}
	if p.Channels() != 3 {
		t.Errorf("expected 3 channels, got %d", p.Channels())
	}
	if p.cfg.queueSize != DefaultQueueSize || p.cfg.bufferSize != DefaultBufferSize || p.cfg.maxPerFile != -1 {
		t.Errorf("unexpected defaults: %+v", p.cfg)
	}
	if p.outputDir != "." || p.cfg.shardDir != "." {
		t.Errorf("expected output and shard dir to default to '.', got %q %q", p.outputDir, p.cfg.shardDir)
	}
	if p.Running() {
		t.Error("new pool must not be running")
	}
}

func TestPool_Start(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v queueVariant) {
		t.Run("double start fails", func(t *testing.T) {
			var spawned atomic.Int32
			factory := func(WorkerInfo) (TransformFunc[int], error) {
				spawned.Add(1)
				return echo, nil
			}
			p, err := NewPerWorker(factory, t.TempDir(), "out", []string{"json"}, append(v.opts, WithWorkerCount(2))...)
			if err != nil {
				t.Fatalf("NewPerWorker: %v", err)
			}
			if err := p.Start(context.Background()); err != nil {
				t.Fatalf("first start failed: %v", err)
			}

			err = p.Start(context.Background())
			if !errors.Is(err, ErrAlreadyStarted) {
				t.Errorf("expected ErrAlreadyStarted, got %v", err)
			}
			if !errors.Is(err, ErrInvalidState) {
				t.Errorf("expected ErrAlreadyStarted to wrap ErrInvalidState")
			}

			if _, err := p.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if n := spawned.Load(); n != 2 {
				t.Errorf("expected 2 workers, the second Start spawned more: %d", n)
			}
		})

		t.Run("creates output directory", func(t *testing.T) {
			dir := t.TempDir() + "/nested/out"
			p, err := New(echo, dir, "out", []string{"json"}, v.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := p.Start(context.Background()); err != nil {
				t.Fatalf("Start: %v", err)
			}
			if _, err := p.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
		})
	})
}

func TestPool_NotRunning(t *testing.T) {
	p, _ := newTestPool(t, echo, []string{"json"}, WithWorkerCount(1))

	if err := p.Feed(context.Background(), 1); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Feed before Start: expected ErrNotRunning, got %v", err)
	}
	if _, err := p.Close(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Close before Start: expected ErrNotRunning, got %v", err)
	}

	runUnits(t, p, []int{1})

	if err := p.Feed(context.Background(), 2); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Feed after Close: expected ErrNotRunning, got %v", err)
	}
	if _, err := p.Close(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Close: expected ErrNotRunning, got %v", err)
	}
}

func TestPool_Restart(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v queueVariant) {
		p, _ := newTestPool(t, echo, []string{"json"}, append(v.opts, WithWorkerCount(3))...)

		for round := range 3 {
			counts := runUnits(t, p, intRange(20))
			if counts[0] != 20 {
				t.Errorf("round %d: expected 20 records, got %d", round, counts[0])
			}
			if p.Running() {
				t.Errorf("round %d: pool still running after Close", round)
			}

			// Each round overwrites the same final file.
			files := p.OutputFiles()
			if len(files) != 1 || len(files[0]) != 1 {
				t.Fatalf("round %d: unexpected output files %v", round, files)
			}
			if got := readInts(t, files[0]); !equalInts(got, intRange(20)) {
				t.Errorf("round %d: unexpected records %v", round, got)
			}
		}
	})
}

func TestPool_FeedNil(t *testing.T) {
	t.Run("nil pointer", func(t *testing.T) {
		fn := func(_ context.Context, u *int, _ WorkerInfo) ([]any, error) { return []any{*u}, nil }
		p, _ := newTestPool(t, fn, []string{"json"}, WithWorkerCount(1))
		if err := p.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		defer p.Close()

		if err := p.Feed(context.Background(), nil); !errors.Is(err, ErrInvalidUnit) {
			t.Errorf("expected ErrInvalidUnit, got %v", err)
		}
		one := 1
		if err := p.Feed(context.Background(), &one); err != nil {
			t.Errorf("expected valid unit to be accepted, got %v", err)
		}
	})

	t.Run("nil interface", func(t *testing.T) {
		fn := func(_ context.Context, u any, _ WorkerInfo) ([]any, error) { return []any{u}, nil }
		p, _ := newTestPool(t, fn, []string{"json"}, WithWorkerCount(1))
		if err := p.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		defer p.Close()

		if err := p.Feed(context.Background(), nil); !errors.Is(err, ErrInvalidUnit) {
			t.Errorf("expected ErrInvalidUnit, got %v", err)
		}
	})

	t.Run("zero value is a unit", func(t *testing.T) {
		p, _ := newTestPool(t, echo, []string{"json"}, WithWorkerCount(1))
		counts := runUnits(t, p, []int{0, 0})
		if counts[0] != 2 {
			t.Errorf("expected 2 records, got %d", counts[0])
		}
	})
}

func TestPool_Backpressure(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v queueVariant) {
		release := make(chan struct{})
		fn := func(_ context.Context, u int, _ WorkerInfo) ([]any, error) {
			<-release
			return []any{u}, nil
		}
		p, _ := newTestPool(t, fn, []string{"json"}, append(v.opts, WithWorkerCount(1), WithQueueSize(1))...)

		ctx := context.Background()
		if err := p.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}

		// Unit 0 is picked up by the only worker, unit 1 fills the queue.
		for u := range 2 {
			if err := p.Feed(ctx, u); err != nil {
				t.Fatalf("Feed(%d): %v", u, err)
			}
		}

		tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		if err := p.Feed(tctx, 2); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected Feed to block on a full queue, got %v", err)
		}

		fed := make(chan error, 1)
		go func() {
			fed <- p.Feed(ctx, 3)
		}()
		close(release)

		select {
		case err := <-fed:
			if err != nil {
				t.Fatalf("blocked Feed failed: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Feed never unblocked")
		}

		counts, err := p.Close()
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
		if counts[0] != 3 {
			t.Errorf("expected 3 records (unit 2 was never accepted), got %d", counts[0])
		}
	})
}

func TestPool_ContextCancelled(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v queueVariant) {
		p, _ := newTestPool(t, echo, []string{"json"}, append(v.opts, WithWorkerCount(2), WithQueueSize(4))...)

		ctx, cancel := context.WithCancel(context.Background())
		if err := p.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		for u := range 3 {
			if err := p.Feed(ctx, u); err != nil {
				t.Fatalf("Feed: %v", err)
			}
		}
		cancel()

		done := make(chan struct{})
		var err error
		go func() {
			defer close(done)
			_, err = p.Close()
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Close hung after context cancellation")
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("expected nil or context.Canceled, got %v", err)
		}
		if p.Running() {
			t.Error("pool still running after Close")
		}
	})
}

func TestPool_FeedAfterWorkersStopped(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v queueVariant) {
		p, _ := newTestPool(t, echo, []string{"json"}, append(v.opts, WithWorkerCount(2), WithQueueSize(2))...)

		ctx, cancel := context.WithCancel(context.Background())
		if err := p.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		cancel()

		fed := make(chan error, 1)
		go func() {
			for u := range 100 {
				if err := p.Feed(context.Background(), u); err != nil {
					fed <- err
					return
				}
			}
			fed <- nil
		}()

		select {
		case err := <-fed:
			if !errors.Is(err, ErrWorkersStopped) {
				t.Errorf("expected ErrWorkersStopped, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Feed blocked after every worker stopped")
		}

		closed := make(chan error, 1)
		go func() {
			_, err := p.Close()
			closed <- err
		}()
		select {
		case err := <-closed:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("expected nil or context.Canceled, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Close hung")
		}
	})
}
