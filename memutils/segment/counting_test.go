package segment_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapalloc/memutils/segment"
	mock_segment "github.com/vkngwrapper/heapalloc/memutils/segment/mocks"
	"go.uber.org/mock/gomock"
)

func TestCountingRecordsSuccessfulGrowth(t *testing.T) {
	region := segment.NewRegion(128)
	counting := segment.NewCounting(region)

	base, err := counting.Grow(100)
	require.NoError(t, err)
	require.Equal(t, region.Base(), base)

	_, err = counting.Grow(100)
	require.Error(t, err)

	require.Equal(t, 1, counting.Grows())
	require.Equal(t, uintptr(100), counting.GrownBytes())

	end, err := counting.End()
	require.NoError(t, err)
	require.Equal(t, region.Base()+100, end)
}

func TestCountingPassesThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mock_segment.NewMockSegment(ctrl)

	gomock.InOrder(
		inner.EXPECT().End().Return(uintptr(0x4000), nil),
		inner.EXPECT().Grow(uintptr(0x200)).Return(uintptr(0x4000), nil),
	)

	counting := segment.NewCounting(inner)
	end, err := counting.End()
	require.NoError(t, err)
	require.Equal(t, uintptr(0x4000), end)

	base, err := counting.Grow(0x200)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x4000), base)
	require.Equal(t, 1, counting.Grows())
}
