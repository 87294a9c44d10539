package memutils

import "math"

// Statistics is a cheap summary of a heap: how much memory has been taken from the
// segment and how much of it is handed out to callers.
type Statistics struct {
	GrowthCount  int
	SegmentBytes int
	// StorageBytes is the part of SegmentBytes holding the heap's own bookkeeping
	StorageBytes    int
	AllocationCount int
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.GrowthCount = 0
	s.SegmentBytes = 0
	s.StorageBytes = 0
	s.AllocationCount = 0
	s.AllocationBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.GrowthCount += other.GrowthCount
	s.SegmentBytes += other.SegmentBytes
	s.StorageBytes += other.StorageBytes
	s.AllocationCount += other.AllocationCount
	s.AllocationBytes += other.AllocationBytes
}

// FreeBytes is the number of bytes taken from the segment that are neither allocated nor
// used for bookkeeping. Debug margins and space abandoned after a failed growth count as free.
func (s *Statistics) FreeBytes() int {
	return s.SegmentBytes - s.StorageBytes - s.AllocationBytes
}

// DetailedStatistics extends Statistics with a per-range breakdown of the free list.
type DetailedStatistics struct {
	Statistics
	FreeRangeCount    int
	FreeRangeBytes    int
	FreeRangeSizeMin  int
	FreeRangeSizeMax  int
	AllocationSizeMin int
	AllocationSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreeRangeCount = 0
	s.FreeRangeBytes = 0
	s.FreeRangeSizeMin = math.MaxInt
	s.FreeRangeSizeMax = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
}

func (s *DetailedStatistics) AddFreeRange(size int) {
	s.FreeRangeCount++
	s.FreeRangeBytes += size

	if size < s.FreeRangeSizeMin {
		s.FreeRangeSizeMin = size
	}

	if size > s.FreeRangeSizeMax {
		s.FreeRangeSizeMax = size
	}
}

func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeRangeCount += other.FreeRangeCount
	s.FreeRangeBytes += other.FreeRangeBytes

	if other.FreeRangeSizeMin < s.FreeRangeSizeMin {
		s.FreeRangeSizeMin = other.FreeRangeSizeMin
	}

	if other.FreeRangeSizeMax > s.FreeRangeSizeMax {
		s.FreeRangeSizeMax = other.FreeRangeSizeMax
	}

	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}
}
