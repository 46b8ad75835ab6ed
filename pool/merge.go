package pool

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/utkarsh5026/shardpool/chunk"
)

// merge streams every shard of every set into one writer per channel, in
// the order the sets arrived, and deletes each shard afterwards. Records
// that fail to transfer are logged and counted as lost; merging goes on.
func (p *Pool[T]) merge(sets []shardSet) ([]int, [][]string, error) {
	channels := len(p.extensions)
	sinks := make([]*channelSink, channels)

	var errs []error
	for _, set := range sets {
		for ch, shards := range set.Files {
			if ch >= channels || len(shards) == 0 {
				continue
			}

			if sinks[ch] == nil {
				w, err := p.finalWriter(ch)
				if err != nil {
					// Only reachable through a bad filesystem; shards stay on disk.
					errs = append(errs, err)
					p.logger.Error("failed to create output writer", zap.Int("channel", ch), zap.Error(err))
					continue
				}
				sinks[ch] = &channelSink{w: w, channel: ch, hook: p.cfg.onRecordMerge, logger: p.logger}
			}

			p.mergeShards(sinks[ch], set.WorkerID, shards)
		}
	}

	counts := make([]int, channels)
	files := make([][]string, channels)
	for ch, s := range sinks {
		if s == nil {
			files[ch] = []string{}
			continue
		}
		if err := s.close(); err != nil {
			errs = append(errs, fmt.Errorf("finalize channel %d: %w", ch, err))
		}
		counts[ch] = s.merged
		files[ch] = s.w.Files()
	}

	return counts, files, errors.Join(errs...)
}

func (p *Pool[T]) finalWriter(channel int) (*chunk.Writer, error) {
	return chunk.NewWriter(p.outputName,
		chunk.WithDir(p.outputDir),
		chunk.WithExtension(p.extensions[channel]),
		chunk.WithMaxRecords(p.cfg.maxPerFile),
		chunk.WithBufferSize(p.cfg.bufferSize),
	)
}

// mergeShards copies the records of one worker's shards for a channel into
// dst.
func (p *Pool[T]) mergeShards(dst *channelSink, workerID int, shards []string) {
	logger := p.logger.With(zap.Int("channel", dst.channel), zap.Int("worker_id", workerID))
	defer removeShards(logger, shards)

	for _, shard := range shards {
		r, err := chunk.NewReader[json.RawMessage]([]string{shard},
			chunk.WithReaderLogger(logger),
			chunk.WithReaderFormat(chunk.FormatNDJSON),
		)
		if err != nil {
			logger.Error("shard file missing", zap.String("shard", shard), zap.Error(err))
			continue
		}

		for rec := range r.Records() {
			dst.write(rec, shard)
		}
		_ = r.Close()
	}
}

// channelSink is the final writer of one channel. A record counts as merged
// once the flush carrying it succeeds, so the hook sees every record once,
// with the error that lost it or nil.
type channelSink struct {
	w       *chunk.Writer
	channel int
	hook    func(channel int, err error)
	logger  *zap.Logger

	merged int
	held   int // handed to w, not yet flushed
}

func (s *channelSink) write(rec json.RawMessage, shard string) {
	s.held++
	if err := s.w.Write(rec); err != nil {
		s.lose(err, shard)
		return
	}
	if s.w.Buffered() == 0 {
		s.commit()
	}
}

func (s *channelSink) close() error {
	err := s.w.Close()
	if err != nil {
		s.lose(err, "")
	}
	s.commit()
	return err
}

func (s *channelSink) commit() {
	for range s.held {
		s.report(nil)
	}
	s.merged += s.held
	s.held = 0
}

// lose reports the records err dropped. A failed flush also settles the
// held records it did not drop, since those reached disk earlier.
func (s *channelSink) lose(err error, shard string) {
	lost := 1
	var flushErr *chunk.FlushError
	if errors.As(err, &flushErr) {
		lost = chunk.Dropped(err)
	}
	lost = min(lost, s.held)

	mergeErr := &MergeError{Channel: s.channel, Shard: shard, Err: err}
	s.logger.Error("lost records while merging", zap.Int("records", lost), zap.Error(mergeErr))
	for range lost {
		s.report(mergeErr)
	}
	s.held -= lost

	if flushErr != nil {
		s.commit()
	}
}

func (s *channelSink) report(err error) {
	if s.hook != nil {
		s.hook(s.channel, err)
	}
}

func removeShards(logger *zap.Logger, shards []string) {
	for _, shard := range shards {
		if err := os.Remove(shard); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove shard file", zap.String("shard", shard), zap.Error(err))
		}
	}
}
