//go:build windows

package cpu

import "syscall"

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	setThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
	getCurrentThread      = kernel32.NewProc("GetCurrentThread")
)

// pinToCore sets the affinity mask of the current thread to the single bit
// for cpuID. The previous mask is restored by the returned func.
func pinToCore(cpuID int) (func(), error) {
	handle, _, _ := getCurrentThread.Call()

	prev, _, err := setThreadAffinityMask.Call(handle, uintptr(1)<<uint(cpuID))
	if prev == 0 {
		return func() {}, err
	}

	return func() {
		_, _, _ = setThreadAffinityMask.Call(handle, prev)
	}, nil
}
