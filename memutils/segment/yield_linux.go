package segment

import "golang.org/x/sys/unix"

// Yield gives up the processor with sched_yield. It is meant for spin-wait loops around a
// heap, never for the allocation path itself.
func Yield() {
	_, _, _ = unix.Syscall(unix.SYS_SCHED_YIELD, 0, 0, 0)
}
