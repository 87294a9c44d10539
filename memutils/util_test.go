package memutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapalloc/memutils"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(uint(64), "value"))
	require.NoError(t, memutils.CheckPow2(uintptr(1), "value"))

	err := memutils.CheckPow2(12, "value")
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
	require.ErrorContains(t, err, "value is 12")
}

func TestCheckAlignment(t *testing.T) {
	require.NoError(t, memutils.CheckAlignment(uintptr(1)))
	require.NoError(t, memutils.CheckAlignment(uintptr(4096)))
	require.ErrorIs(t, memutils.CheckAlignment(uintptr(0)), memutils.ErrInvalidAlignment)

	err := memutils.CheckAlignment(uintptr(24))
	require.ErrorIs(t, err, memutils.ErrInvalidAlignment)
	require.ErrorContains(t, err, "alignment is 24: number must be a power of two")
}

func TestAlign(t *testing.T) {
	require.Equal(t, 16, memutils.AlignUp(9, 8))
	require.Equal(t, 8, memutils.AlignUp(8, 8))
	require.Equal(t, uintptr(0x1000), memutils.AlignUp(uintptr(0xfff), 0x1000))

	require.Equal(t, uintptr(0), memutils.AlignPadding(uintptr(0x40), 16))
	require.Equal(t, uintptr(7), memutils.AlignPadding(uintptr(0x41), 8))
	require.Equal(t, uintptr(0), memutils.AlignPadding(uintptr(0x41), 1))
}

func TestMinMax(t *testing.T) {
	require.Equal(t, 3, memutils.Min(3, 5))
	require.Equal(t, uintptr(5), memutils.Max(uintptr(3), 5))
}

func TestDetailedStatistics(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()

	stats.SegmentBytes = 1000
	stats.StorageBytes = 48
	stats.AddAllocation(100)
	stats.AddAllocation(300)
	stats.AddFreeRange(50)
	stats.AddFreeRange(550)

	var total memutils.DetailedStatistics
	total.Clear()
	total.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			SegmentBytes:    1000,
			StorageBytes:    48,
			AllocationCount: 2,
			AllocationBytes: 400,
		},
		FreeRangeCount:    2,
		FreeRangeBytes:    600,
		FreeRangeSizeMin:  50,
		FreeRangeSizeMax:  550,
		AllocationSizeMin: 100,
		AllocationSizeMax: 300,
	}, total)
	require.Equal(t, 552, total.FreeBytes())
}
