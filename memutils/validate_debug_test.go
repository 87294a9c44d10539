//go:build debug_mem_utils

package memutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapalloc/memutils"
)

func TestDebugCheckPow2Panics(t *testing.T) {
	require.NotPanics(t, func() { memutils.DebugCheckPow2(uintptr(16), "alignment") })
	require.PanicsWithError(t, "alignment is 24: number must be a power of two", func() {
		memutils.DebugCheckPow2(uintptr(24), "alignment")
	})
}
