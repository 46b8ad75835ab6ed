//go:build !linux && !windows

package cpu

import "errors"

// ErrPinUnsupported is returned by Lock when the platform has no thread
// affinity API (macOS among others).
var ErrPinUnsupported = errors.New("cpu pinning is not supported on this platform")

func pinToCore(int) (func(), error) {
	return func() {}, ErrPinUnsupported
}
