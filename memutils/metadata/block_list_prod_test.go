//go:build !debug_mem_utils

package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapalloc/memutils/metadata"
)

func TestCheckIsSilentWithoutDebugTag(t *testing.T) {
	list := handBuiltList(t,
		metadata.FreeEntry(metadata.Block{Address: 0x10000, Size: 0x20}),
		metadata.FreeEntry(metadata.Block{Address: 0x10010, Size: 0x20}),
	)

	require.NotPanics(t, list.Check)
	require.Error(t, list.Validate())
}
