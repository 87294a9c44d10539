//go:generate mockgen -destination mocks/segment.go github.com/vkngwrapper/heapalloc/memutils/segment Segment

// Package segment provides the managed region a heap grows into. A Segment behaves like a
// program break: it has a current end address and can only be extended forward.
package segment

import (
	"fmt"

	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/heapalloc/memutils"
)

// Segment is a forward-growing region of address space.
type Segment interface {
	// End returns the current end of the managed region.
	End() (uintptr, error)
	// Grow extends the managed region by size bytes and returns the previous end, which is the
	// base of the newly available space. On failure the region is unchanged and the returned
	// error is an *Error whose Handle is the unchanged end.
	Grow(size uintptr) (uintptr, error)
}

// Error is returned by Segment implementations when the region cannot be extended.
type Error struct {
	handle uintptr
	cause  error
}

func newError(handle uintptr, cause error) *Error {
	return &Error{handle: handle, cause: cause}
}

// Handle returns the end of the region as it stood when the request failed.
func (e *Error) Handle() uintptr {
	return e.handle
}

func (e *Error) Error() string {
	return fmt.Sprintf("segment end %#x: %v", e.handle, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func outOfMemory(handle, requested, available uintptr) *Error {
	return newError(handle, cerrors.Wrapf(memutils.ErrOutOfMemory,
		"requested %d bytes but only %d remain", requested, available))
}
