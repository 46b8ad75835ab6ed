package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every construction-time validation failure.
	ErrInvalidConfig = errors.New("invalid pool configuration")

	// ErrInvalidState is wrapped by lifecycle errors.
	ErrInvalidState = errors.New("invalid pool state")

	// ErrAlreadyStarted is returned by Start on a running pool.
	ErrAlreadyStarted = fmt.Errorf("%w: pool already started", ErrInvalidState)

	// ErrNotRunning is returned by Feed and Close on a pool that is not running.
	ErrNotRunning = fmt.Errorf("%w: pool not running", ErrInvalidState)

	// ErrWorkersStopped is returned by Feed once every worker has exited
	// before Close.
	ErrWorkersStopped = fmt.Errorf("%w: workers stopped", ErrInvalidState)

	// ErrInvalidUnit is returned by Feed for nil units, which are reserved
	// for shutdown.
	ErrInvalidUnit = errors.New("invalid work unit: nil is reserved")
)

// ConfigError reports which setting was rejected.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// UnitError wraps the failure of one work unit. The unit is dropped.
type UnitError struct {
	WorkerID int
	Err      error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("worker %d: unit failed: %v", e.WorkerID, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// MergeError wraps the failure that kept records from reaching the final
// output. Shard is the shard being read when the failure surfaced, empty
// when it came from finalizing the output. The records are counted as lost.
type MergeError struct {
	Channel int
	Shard   string
	Err     error
}

func (e *MergeError) Error() string {
	if e.Shard == "" {
		return fmt.Sprintf("channel %d: finalizing output: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("channel %d: merging record from %s: %v", e.Channel, e.Shard, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }
