//go:build !linux

package segment

import "runtime"

// Yield gives up the processor. It is meant for spin-wait loops around a heap, never for
// the allocation path itself.
func Yield() {
	runtime.Gosched()
}
