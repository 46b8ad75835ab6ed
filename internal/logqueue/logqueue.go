// Package logqueue funnels log entries from many workers through a single
// goroutine so they reach the sink one at a time.
package logqueue

import (
	"sync"

	"go.uber.org/zap/zapcore"
)

// DefaultSize is the number of entries buffered between workers and the
// listener.
const DefaultSize = 1024

type entry struct {
	ent    zapcore.Entry
	fields []zapcore.Field
}

// Queue carries log entries from worker loggers to one listener.
type Queue struct {
	entries chan entry

	mu      sync.RWMutex
	stopped bool

	listening sync.Once
	done      chan struct{}
}

// New creates a queue buffering up to size entries.
func New(size int) *Queue {
	if size <= 0 {
		size = DefaultSize
	}
	return &Queue{
		entries: make(chan entry, size),
		done:    make(chan struct{}),
	}
}

// Core returns a zapcore.Core that forwards every enabled entry to the
// queue. Entries written after Stop are dropped.
func (q *Queue) Core(level zapcore.LevelEnabler) zapcore.Core {
	return &core{LevelEnabler: level, queue: q}
}

// Listen starts the goroutine that writes queued entries to sink. Calls
// after the first are no-ops.
func (q *Queue) Listen(sink zapcore.Core) {
	q.listening.Do(func() {
		go func() {
			defer close(q.done)
			for e := range q.entries {
				if ce := sink.Check(e.ent, nil); ce != nil {
					ce.Write(e.fields...)
				}
			}
			_ = sink.Sync()
		}()
	})
}

// Stop closes the queue and waits until the listener has written every
// entry accepted before the call.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.entries)
	q.mu.Unlock()

	q.listening.Do(func() {
		close(q.done)
	})
	<-q.done
}

func (q *Queue) push(e entry) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return
	}
	q.entries <- e
}

type core struct {
	zapcore.LevelEnabler
	queue  *Queue
	fields []zapcore.Field
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &core{LevelEnabler: c.LevelEnabler, queue: c.queue, fields: merged}
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	c.queue.push(entry{ent: ent, fields: all})
	return nil
}

func (c *core) Sync() error { return nil }
