// Package cpu gives each pool worker a dedicated OS thread and optionally
// pins that thread to one logical CPU.
package cpu

import "runtime"

// Lock wires the calling goroutine to its own OS thread. When pin is set the
// thread is additionally restricted to CPU workerID modulo NumCPU; pinning
// is best effort and its failure is returned alongside a valid release.
//
// The returned release must be called from the same goroutine.
func Lock(workerID int, pin bool) (release func(), err error) {
	runtime.LockOSThread()
	if !pin {
		return runtime.UnlockOSThread, nil
	}

	restore, err := pinToCore(coreFor(workerID))
	return func() {
		restore()
		runtime.UnlockOSThread()
	}, err
}

func coreFor(workerID int) int {
	n := runtime.NumCPU()
	id := workerID % n
	if id < 0 {
		id += n
	}
	return id
}
