package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapalloc/memutils/metadata"
	"github.com/vkngwrapper/heapalloc/memutils/segment"
)

func handBuiltList(t *testing.T, entries ...metadata.Entry) *metadata.BlockList {
	region := segment.NewRegion(1 << 12)
	list, err := metadata.NewBlockListWithEntries(region, entries)
	require.NoError(t, err)
	return list
}

func TestValidateEmptyList(t *testing.T) {
	list := metadata.NewBlockList(segment.NewRegion(1 << 12))
	require.NoError(t, list.Validate())
}

func TestValidateAcceptsSeparatedRanges(t *testing.T) {
	list := handBuiltList(t,
		metadata.FreeEntry(metadata.Block{Address: 0x10000, Size: 0x10}),
		metadata.Entry{Block: metadata.Block{Address: 0x10020}},
		metadata.FreeEntry(metadata.Block{Address: 0x10020, Size: 0x10}),
		metadata.FreeEntry(metadata.Block{Address: 0x10040, Size: 0x10}),
	)
	require.NoError(t, list.Validate())
	require.Equal(t, 3, list.FreeRegionsCount())
	require.Equal(t, uintptr(0x30), list.SumFreeSize())
}

func TestValidateRejectsOverlappingRanges(t *testing.T) {
	list := handBuiltList(t,
		metadata.FreeEntry(metadata.Block{Address: 0x10000, Size: 0x20}),
		metadata.FreeEntry(metadata.Block{Address: 0x10010, Size: 0x20}),
	)
	require.ErrorContains(t, list.Validate(), "overlapping or adjacent")
}

func TestValidateRejectsTouchingRanges(t *testing.T) {
	list := handBuiltList(t,
		metadata.FreeEntry(metadata.Block{Address: 0x10000, Size: 0x10}),
		metadata.Entry{Block: metadata.Block{Address: 0x10008}},
		metadata.FreeEntry(metadata.Block{Address: 0x10010, Size: 0x10}),
	)
	require.ErrorContains(t, list.Validate(), "overlapping or adjacent")
}

func TestValidateRejectsUnsortedSlots(t *testing.T) {
	list := handBuiltList(t,
		metadata.FreeEntry(metadata.Block{Address: 0x20000, Size: 0x10}),
		metadata.FreeEntry(metadata.Block{Address: 0x10000, Size: 0x10}),
	)
	require.ErrorContains(t, list.Validate(), "is ordered after")
}

func TestValidateRejectsDuplicateAddresses(t *testing.T) {
	list := handBuiltList(t,
		metadata.FreeEntry(metadata.Block{Address: 0x10000, Size: 0x10}),
		metadata.FreeEntry(metadata.Block{Address: 0x10000, Size: 0x20}),
	)
	require.ErrorContains(t, list.Validate(), "not sorted")
}

func TestValidateRejectsMalformedSlots(t *testing.T) {
	list := handBuiltList(t,
		metadata.Entry{Block: metadata.Block{Address: 0x10000, Size: 0x10}},
	)
	require.ErrorContains(t, list.Validate(), "vacant slot")

	list = handBuiltList(t,
		metadata.FreeEntry(metadata.Block{Address: 0x10000}),
	)
	require.ErrorContains(t, list.Validate(), "is empty")

	list = handBuiltList(t,
		metadata.Entry{Block: metadata.Block{Address: 0x10000, Size: 0x10}, State: 9},
	)
	require.ErrorContains(t, list.Validate(), "unknown state")
}

func TestValidateRejectsRangeOverStorage(t *testing.T) {
	region := segment.NewRegion(1 << 12)
	list, err := metadata.NewBlockListWithEntries(region, []metadata.Entry{
		metadata.FreeEntry(metadata.Block{Address: 0x10000, Size: 0x10}),
	})
	require.NoError(t, err)

	storage := list.Storage()
	list, err = metadata.NewBlockListWithEntries(region, []metadata.Entry{
		metadata.FreeEntry(storage),
	})
	require.NoError(t, err)
	require.NoError(t, list.Validate())

	list, err = metadata.NewBlockListWithEntries(region, []metadata.Entry{
		metadata.FreeEntry(metadata.Block{Address: region.Base(), Size: region.Limit() - region.Base()}),
	})
	require.NoError(t, err)
	require.ErrorContains(t, list.Validate(), "overlaps the list storage")
}
