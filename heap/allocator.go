// Package heap wraps a block list in a synchronized allocator that hands out pointers and
// remembers the size of everything it has handed out.
package heap

import (
	"context"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/heapalloc/internal/utils"
	"github.com/vkngwrapper/heapalloc/memutils"
	"github.com/vkngwrapper/heapalloc/memutils/metadata"
	"github.com/vkngwrapper/heapalloc/memutils/segment"
	"golang.org/x/exp/slog"
)

var (
	// ErrUnknownAllocation is returned when a pointer passed to Free or Realloc was not
	// returned by this allocator, or has already been freed
	ErrUnknownAllocation = cerrors.New("pointer was not allocated by this heap")
	// ErrMemoryCorruption is returned when the debug margin behind an allocation has been
	// overwritten
	ErrMemoryCorruption = cerrors.New("memory corruption detected")
	// ErrCorruptionDetectionDisabled is returned from CheckCorruption when the module was built
	// without the debug_mem_utils tag
	ErrCorruptionDetectionDisabled = cerrors.New("corruption detection requires the debug_mem_utils build tag")
	// ErrNoSegment is returned from New when no segment is provided
	ErrNoSegment = cerrors.New("an allocator requires a segment")
)

// Allocator hands out memory from a segment. Unless it is created with
// AllocatorCreateExternallySynchronized, all of its methods may be called concurrently.
type Allocator struct {
	logger      *slog.Logger
	createFlags CreateFlags
	mutex       utils.OptionalMutex

	segment segment.Segment
	blocks  *metadata.BlockList

	// requested size of every live allocation, keyed by address
	live            *swiss.Map[uintptr, uintptr]
	allocationBytes uintptr
}

func checkSize(size uintptr) error {
	if size == 0 {
		return memutils.ErrInvalidSize
	}
	if size > ^uintptr(0)-uintptr(memutils.DebugMargin) {
		return cerrors.Wrapf(memutils.ErrOutOfMemory, "cannot allocate %d bytes", size)
	}
	return nil
}

// Alloc returns a pointer to size bytes aligned to align, which must be a power of two
func (a *Allocator) Alloc(size, align uintptr) (unsafe.Pointer, error) {
	a.logger.Debug("Allocator::Alloc")

	err := checkSize(size)
	if err != nil {
		return nil, err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	growthCount := a.blocks.GrowthCount()
	address, err := a.blocks.Alloc(size+uintptr(memutils.DebugMargin), align)
	if err != nil {
		return nil, cerrors.Wrapf(err, "failed to allocate %d bytes", size)
	}
	a.logGrowth(growthCount)

	a.track(address, size)
	return unsafe.Pointer(address), nil
}

// Free returns the allocation at ptr to the heap. Freeing nil is a no-op.
func (a *Allocator) Free(ptr unsafe.Pointer) error {
	a.logger.Debug("Allocator::Free")

	if ptr == nil {
		return nil
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	address := uintptr(ptr)
	size, err := a.lookup(address)
	if err != nil {
		return err
	}

	err = a.blocks.Free(a.block(address, size))
	if err != nil {
		return cerrors.Wrapf(err, "failed to free allocation at %#x", address)
	}

	a.untrack(address, size)
	return nil
}

// Realloc resizes the allocation at ptr to newSize bytes aligned to align and returns its new
// location, which may be ptr itself. The first min(old size, newSize) bytes are preserved.
// Reallocating nil is the same as Alloc. On failure the original allocation is untouched.
func (a *Allocator) Realloc(ptr unsafe.Pointer, newSize, align uintptr) (unsafe.Pointer, error) {
	a.logger.Debug("Allocator::Realloc")

	if ptr == nil {
		return a.Alloc(newSize, align)
	}

	err := checkSize(newSize)
	if err != nil {
		return nil, err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	address := uintptr(ptr)
	size, err := a.lookup(address)
	if err != nil {
		return nil, err
	}

	growthCount := a.blocks.GrowthCount()
	newAddress, err := a.blocks.Realloc(a.block(address, size), newSize+uintptr(memutils.DebugMargin), align)
	if err != nil {
		return nil, cerrors.Wrapf(err, "failed to reallocate %d bytes at %#x to %d bytes", size, address, newSize)
	}
	a.logGrowth(growthCount)

	a.untrack(address, size)
	a.track(newAddress, newSize)
	return unsafe.Pointer(newAddress), nil
}

// CheckCorruption verifies the debug margin behind every live allocation
func (a *Allocator) CheckCorruption() error {
	if !memutils.DebugEnabled {
		return ErrCorruptionDetectionDisabled
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	var err error
	a.live.Iter(func(address, size uintptr) bool {
		err = a.validateMargin(address, size)
		return err != nil
	})
	return err
}

// Destroy logs every allocation that is still live and returns an error if there are any.
// The segment is left to its owner.
func (a *Allocator) Destroy() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.live.Count() == 0 {
		return nil
	}

	a.live.Iter(func(address, size uintptr) bool {
		a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
			slog.Uint64("address", uint64(address)),
			slog.Uint64("size", uint64(size)),
		)
		return false
	})

	return cerrors.Newf("%d allocations were not freed before the destruction of this heap", a.live.Count())
}

// DebugLogFreeRanges writes the heap's free ranges to the allocator's logger at debug level
func (a *Allocator) DebugLogFreeRanges() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.blocks.DebugLogFreeRanges(a.logger)
}

func (a *Allocator) block(address, size uintptr) metadata.Block {
	return metadata.Block{Address: address, Size: size + uintptr(memutils.DebugMargin)}
}

func (a *Allocator) lookup(address uintptr) (uintptr, error) {
	size, ok := a.live.Get(address)
	if !ok {
		return 0, cerrors.Wrapf(ErrUnknownAllocation, "address %#x", address)
	}

	err := a.validateMargin(address, size)
	if err != nil {
		return 0, err
	}

	return size, nil
}

func (a *Allocator) validateMargin(address, size uintptr) error {
	if !memutils.ValidateMagicValue(unsafe.Pointer(address), int(size)) {
		a.logger.LogAttrs(context.Background(), slog.LevelError, "[CORRUPTED MEMORY] debug margin overwritten",
			slog.Uint64("address", uint64(address)),
			slog.Uint64("size", uint64(size)),
		)
		return cerrors.Wrapf(ErrMemoryCorruption, "after allocation at %#x of %d bytes", address, size)
	}
	return nil
}

func (a *Allocator) track(address, size uintptr) {
	memutils.WriteMagicValue(unsafe.Pointer(address), int(size))
	a.live.Put(address, size)
	a.allocationBytes += size
}

func (a *Allocator) untrack(address, size uintptr) {
	a.live.Delete(address)
	a.allocationBytes -= size
}

func (a *Allocator) logGrowth(previousGrowthCount int) {
	if a.blocks.GrowthCount() == previousGrowthCount {
		return
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "Allocator::growSegment",
		slog.Int("growthCount", a.blocks.GrowthCount()),
		slog.Uint64("segmentBytes", uint64(a.blocks.SegmentBytes())),
	)
}
