package metadata

import (
	"context"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/heapalloc/memutils"
	"golang.org/x/exp/slog"
)

// VisitEntries calls visit once for each occupied slot in the list, vacant slots included,
// in address order. Iteration stops at the first error, which is returned.
func (l *BlockList) VisitEntries(visit func(index int, entry Entry) error) error {
	for index, entry := range l.entries() {
		err := visit(index, entry)
		if err != nil {
			return err
		}
	}

	return nil
}

// VisitFreeRanges calls visit once for each free range in address order. Iteration stops at the
// first error, which is returned.
func (l *BlockList) VisitFreeRanges(visit func(block Block) error) error {
	return l.VisitEntries(func(index int, entry Entry) error {
		if !entry.IsFree() {
			return nil
		}
		return visit(entry.Block)
	})
}

// FreeRegionsCount returns the number of free ranges in the list
func (l *BlockList) FreeRegionsCount() int {
	var count int
	for _, entry := range l.entries() {
		if entry.IsFree() {
			count++
		}
	}
	return count
}

// SumFreeSize returns the number of free bytes recorded in the list
func (l *BlockList) SumFreeSize() uintptr {
	var sum uintptr
	for _, entry := range l.entries() {
		if entry.IsFree() {
			sum += entry.Size
		}
	}
	return sum
}

// GrowthCount returns the number of times the list has extended its segment
func (l *BlockList) GrowthCount() int { return l.growthCount }

// SegmentBytes returns the number of bytes the list has taken from its segment
func (l *BlockList) SegmentBytes() uintptr { return l.segmentBytes }

// AddStatistics sums the list's segment usage and storage size into stats. Allocation counts
// are not known to the list and are left alone.
func (l *BlockList) AddStatistics(stats *memutils.Statistics) {
	stats.GrowthCount += l.growthCount
	stats.SegmentBytes += int(l.segmentBytes)
	stats.StorageBytes += int(l.Storage().Size)
}

// AddDetailedStatistics sums the list's segment usage and free ranges into stats
func (l *BlockList) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	l.AddStatistics(&stats.Statistics)

	for _, entry := range l.entries() {
		if entry.IsFree() {
			stats.AddFreeRange(int(entry.Size))
		}
	}
}

// BlockJsonData populates a json object with information about the list
func (l *BlockList) BlockJsonData(json jwriter.ObjectState) {
	json.Name("SegmentBytes").Int(int(l.segmentBytes))
	json.Name("GrowthCount").Int(l.growthCount)
	json.Name("FreeBytes").Int(int(l.SumFreeSize()))
	json.Name("FreeRanges").Int(l.FreeRegionsCount())
	json.Name("Slots").Int(l.len)
	json.Name("Capacity").Int(l.cap)

	array := json.Name("Free").Array()
	defer array.End()

	_ = l.VisitFreeRanges(func(block Block) error {
		obj := array.Object()
		defer obj.End()

		obj.Name("Address").Int(int(block.Address))
		obj.Name("Size").Int(int(block.Size))
		return nil
	})
}

// DebugLogFreeRanges writes one debug record per free range to logger
func (l *BlockList) DebugLogFreeRanges(logger *slog.Logger) {
	_ = l.VisitFreeRanges(func(block Block) error {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "free range",
			slog.String("range", block.String()),
			slog.Uint64("size", uint64(block.Size)),
		)
		return nil
	})
}
