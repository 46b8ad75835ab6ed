//go:build linux

package cpu

import "golang.org/x/sys/unix"

// pinToCore restricts the current thread to cpuID and returns a func that
// puts the previous mask back before the thread is handed back to the
// scheduler.
func pinToCore(cpuID int) (func(), error) {
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return func() {}, err
	}

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &mask); err != nil { // 0 = current thread
		return func() {}, err
	}

	return func() {
		_ = unix.SchedSetaffinity(0, &prev)
	}, nil
}
