// Package split distributes the records of a corpus over several writers,
// for cross-validation folds or a training/test split.
package split

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
)

// ErrInvalidArgument is returned for unusable split parameters.
var ErrInvalidArgument = errors.New("split: invalid argument")

// Source is a restartable record stream. *chunk.Reader satisfies it.
type Source[R any] interface {
	Read() (R, error)
	ReadBatch(n int) ([]R, error)
	Count() (int, error)
	Reset()
}

// Writer receives records. *chunk.Writer satisfies it.
type Writer interface {
	Write(record any) error
}

// CrossValidation deals the records of src round-robin over writers after
// shuffling the order of the writers. Fold sizes differ by at most one.
func CrossValidation[R any](src Source[R], writers []Writer, rng *rand.Rand) error {
	if len(writers) == 0 {
		return fmt.Errorf("%w: at least one writer is required", ErrInvalidArgument)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	order := slices.Clone(writers)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	src.Reset()
	for i := 0; ; i++ {
		rec, err := src.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := order[i%len(order)].Write(rec); err != nil {
			return fmt.Errorf("write fold %d: %w", i%len(order), err)
		}
	}
}

// Proportional sends roughly proportion of the records to writers[0] and
// the rest to writers[1].
//
// With batchSize <= 0 every record goes to the training writer with
// probability proportion. Otherwise records are read batchSize at a time,
// each batch is shuffled, and exactly floor(total*proportion) records end up
// in the training writer.
func Proportional[R any](src Source[R], writers [2]Writer, proportion float64, batchSize int, rng *rand.Rand) error {
	if !(proportion > 0 && proportion < 1) {
		return fmt.Errorf("%w: proportion must be in (0, 1), got %v", ErrInvalidArgument, proportion)
	}
	if writers[0] == nil || writers[1] == nil {
		return fmt.Errorf("%w: both writers are required", ErrInvalidArgument)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if batchSize <= 0 {
		return coinFlip(src, writers, proportion, rng)
	}
	return batched(src, writers, proportion, batchSize, rng)
}

func coinFlip[R any](src Source[R], writers [2]Writer, proportion float64, rng *rand.Rand) error {
	src.Reset()
	for {
		rec, err := src.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		idx := 1
		if rng.Float64() < proportion {
			idx = 0
		}
		if err := writers[idx].Write(rec); err != nil {
			return fmt.Errorf("write split %d: %w", idx, err)
		}
	}
}

func batched[R any](src Source[R], writers [2]Writer, proportion float64, batchSize int, rng *rand.Rand) error {
	total, err := src.Count()
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}
	training := int(math.Floor(float64(total) * proportion))

	src.Reset()
	seen, assigned := 0, 0
	for {
		batch, err := src.ReadBatch(batchSize)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		rng.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })

		// n is this batch's share of the running training quota.
		seen += len(batch)
		n := int(math.Floor(float64(seen)*proportion)) - assigned
		n = max(0, min(n, len(batch), training-assigned))
		assigned += n

		for i, rec := range batch {
			idx := 0
			if i >= n {
				idx = 1
			}
			if err := writers[idx].Write(rec); err != nil {
				return fmt.Errorf("write split %d: %w", idx, err)
			}
		}
	}
}
