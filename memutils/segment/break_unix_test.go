//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package segment_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapalloc/memutils"
	"github.com/vkngwrapper/heapalloc/memutils/segment"
)

func TestBreakCommitsPagesAsItGrows(t *testing.T) {
	brk, err := segment.NewBreak(1 << 20)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, brk.Release())
	}()

	end, err := brk.End()
	require.NoError(t, err)
	require.Equal(t, brk.Base(), end)

	sizes := []uintptr{10, 4096, 3, 20000}
	for _, size := range sizes {
		prev, err := brk.Grow(size)
		require.NoError(t, err)
		require.Equal(t, end, prev)

		// Every grown byte must be writable
		data := unsafe.Slice((*byte)(unsafe.Pointer(prev)), size)
		for i := range data {
			data[i] = byte(i)
		}
		require.Equal(t, byte(size-1), data[size-1])

		end, err = brk.End()
		require.NoError(t, err)
		require.Equal(t, prev+size, end)
	}
}

func TestBreakExhausted(t *testing.T) {
	brk, err := segment.NewBreak(1 << 16)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, brk.Release())
	}()

	_, err = brk.Grow(brk.Limit() - brk.Base() + 1)
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)

	_, err = brk.Grow(brk.Limit() - brk.Base())
	require.NoError(t, err)
}

func TestBreakReleased(t *testing.T) {
	brk, err := segment.NewBreak(1 << 16)
	require.NoError(t, err)
	require.NoError(t, brk.Release())
	require.NoError(t, brk.Release())

	_, err = brk.End()
	require.Error(t, err)
	_, err = brk.Grow(8)
	require.Error(t, err)
}
