//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package segment

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/heapalloc/memutils"
	"golang.org/x/sys/unix"
)

// Break emulates a process program break. A contiguous range of address space is reserved
// up front with no access rights, and Grow commits pages to read/write as the break advances.
// Committed pages are never returned.
type Break struct {
	mapping   []byte
	base      uintptr
	end       uintptr
	committed uintptr
	pageSize  uintptr
}

var _ Segment = &Break{}

// NewBreak reserves reserve bytes of address space for the break to grow into.
func NewBreak(reserve int) (*Break, error) {
	pageSize := uintptr(unix.Getpagesize())
	size := memutils.AlignUp(uintptr(reserve), pageSize)
	if size == 0 {
		return nil, cerrors.Errorf("cannot reserve %d bytes for a break", reserve)
	}

	mapping, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, cerrors.Wrapf(err, "failed to reserve %d bytes of address space", size)
	}

	base := uintptr(unsafe.Pointer(&mapping[0]))
	return &Break{
		mapping:   mapping,
		base:      base,
		end:       base,
		committed: base,
		pageSize:  pageSize,
	}, nil
}

// Base returns the lowest address of the break.
func (b *Break) Base() uintptr { return b.base }

// Limit returns the address one past the highest address the break can grow to.
func (b *Break) Limit() uintptr { return b.base + uintptr(len(b.mapping)) }

func (b *Break) End() (uintptr, error) {
	if b.mapping == nil {
		return 0, newError(0, cerrors.New("the break has been released"))
	}
	return b.end, nil
}

func (b *Break) Grow(size uintptr) (uintptr, error) {
	if b.mapping == nil {
		return 0, newError(0, cerrors.New("the break has been released"))
	}

	available := b.Limit() - b.end
	if size > available {
		return b.end, outOfMemory(b.end, size, available)
	}

	newEnd := b.end + size
	if newEnd > b.committed {
		commitTo := memutils.Min(memutils.AlignUp(newEnd, b.pageSize), b.Limit())
		err := unix.Mprotect(b.mapping[b.committed-b.base:commitTo-b.base], unix.PROT_READ|unix.PROT_WRITE)
		if err != nil {
			return b.end, newError(b.end, cerrors.Wrapf(memutils.ErrOutOfMemory, "failed to commit %d bytes: %v", commitTo-b.committed, err))
		}
		b.committed = commitTo
	}

	prev := b.end
	b.end = newEnd
	return prev, nil
}

// Release unmaps the whole break. Every address handed out from it becomes invalid.
func (b *Break) Release() error {
	if b.mapping == nil {
		return nil
	}

	err := unix.Munmap(b.mapping)
	if err != nil {
		return cerrors.Wrap(err, "failed to release the break")
	}
	b.mapping = nil
	return nil
}
