package utils

import (
	"sync"
	"sync/atomic"

	"github.com/vkngwrapper/heapalloc/memutils/segment"
)

// OptionalMutex locks Mutex only when UseMutex is set. Mutex may be any sync.Locker; a
// nil Mutex with UseMutex set falls back to a sync.Mutex on first use.
type OptionalMutex struct {
	Mutex    sync.Locker
	UseMutex bool

	fallback sync.Mutex
}

func (m *OptionalMutex) locker() sync.Locker {
	if m.Mutex == nil {
		return &m.fallback
	}
	return m.Mutex
}

func (m *OptionalMutex) Lock() {
	if m.UseMutex {
		m.locker().Lock()
	}
}

func (m *OptionalMutex) Unlock() {
	if m.UseMutex {
		m.locker().Unlock()
	}
}

// SpinMutex is a test-and-set lock that yields the processor between attempts. The zero
// value is unlocked.
type SpinMutex struct {
	state int32
}

var _ sync.Locker = &SpinMutex{}

func (m *SpinMutex) TryLock() bool {
	return atomic.CompareAndSwapInt32(&m.state, 0, 1)
}

func (m *SpinMutex) Lock() {
	for !m.TryLock() {
		segment.Yield()
	}
}

func (m *SpinMutex) Unlock() {
	if atomic.SwapInt32(&m.state, 0) == 0 {
		panic("unlock of unlocked SpinMutex")
	}
}
