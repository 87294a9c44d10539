package segment

import "unsafe"

// Region is a Segment backed by a fixed byte slice allocated from the Go heap. It never
// returns memory to the runtime; the slice lives as long as the Region does.
type Region struct {
	memory []byte
	base   uintptr
	end    uintptr
}

var _ Segment = &Region{}

// NewRegion creates a Region that can grow to at most capacity bytes.
func NewRegion(capacity int) *Region {
	if capacity < 1 {
		panic("a region must have a positive capacity")
	}

	memory := make([]byte, capacity)
	base := uintptr(unsafe.Pointer(&memory[0]))
	return &Region{
		memory: memory,
		base:   base,
		end:    base,
	}
}

// Base returns the lowest address of the region.
func (r *Region) Base() uintptr { return r.base }

// Limit returns the address one past the highest address the region can grow to.
func (r *Region) Limit() uintptr { return r.base + uintptr(len(r.memory)) }

func (r *Region) End() (uintptr, error) {
	return r.end, nil
}

func (r *Region) Grow(size uintptr) (uintptr, error) {
	available := r.Limit() - r.end
	if size > available {
		return r.end, outOfMemory(r.end, size, available)
	}

	prev := r.end
	r.end += size
	return prev, nil
}
