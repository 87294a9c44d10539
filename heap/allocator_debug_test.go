//go:build debug_mem_utils

package heap_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapalloc/heap"
	"github.com/vkngwrapper/heapalloc/memutils"
)

func TestAllocatorDetectsCorruption(t *testing.T) {
	allocator := newAllocator(t, 1<<12, heap.CreateOptions{})

	ptr, err := allocator.Alloc(32, 8)
	require.NoError(t, err)
	require.NoError(t, allocator.CheckCorruption())

	// Write one byte past the end of the allocation.
	bytesOf(ptr, 32+memutils.DebugMargin)[32] ^= 0xFF

	require.ErrorIs(t, allocator.CheckCorruption(), heap.ErrMemoryCorruption)
	require.ErrorIs(t, allocator.Free(ptr), heap.ErrMemoryCorruption)

	_, err = allocator.Realloc(ptr, 64, 8)
	require.ErrorIs(t, err, heap.ErrMemoryCorruption)
}
