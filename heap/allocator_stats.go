package heap

import (
	"io"

	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/heapalloc/memutils"
	"golang.org/x/exp/slices"
)

// Statistics populates stats with a summary of the heap
func (a *Allocator) Statistics(stats *memutils.Statistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	stats.Clear()
	a.blocks.AddStatistics(stats)
	stats.AllocationCount = a.live.Count()
	stats.AllocationBytes = int(a.allocationBytes)
}

// DetailedStatistics populates stats with a summary of the heap along with the size range of
// its free ranges and live allocations
func (a *Allocator) DetailedStatistics(stats *memutils.DetailedStatistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.detailedStatistics(stats)
}

func (a *Allocator) detailedStatistics(stats *memutils.DetailedStatistics) {
	stats.Clear()
	a.blocks.AddDetailedStatistics(stats)
	a.live.Iter(func(_, size uintptr) bool {
		stats.AddAllocation(int(size))
		return false
	})
}

func writeStatistics(json *jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("GrowthCount").Int(stats.GrowthCount)
	json.Name("SegmentBytes").Int(stats.SegmentBytes)
	json.Name("StorageBytes").Int(stats.StorageBytes)
	json.Name("AllocationCount").Int(stats.AllocationCount)
	json.Name("AllocationBytes").Int(stats.AllocationBytes)
	json.Name("FreeRangeCount").Int(stats.FreeRangeCount)
	json.Name("FreeRangeBytes").Int(stats.FreeRangeBytes)

	if stats.AllocationCount > 0 {
		json.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		json.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}

	if stats.FreeRangeCount > 0 {
		json.Name("FreeRangeSizeMin").Int(stats.FreeRangeSizeMin)
		json.Name("FreeRangeSizeMax").Int(stats.FreeRangeSizeMax)
	}
}

// WriteJSON writes a json document describing the heap to w. When detailedMap is true, the
// document also lists every live allocation in address order.
func (a *Allocator) WriteJSON(w io.Writer, detailedMap bool) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	writer := jwriter.NewWriter()
	root := writer.Object()

	root.Name("Flags").String(a.createFlags.String())
	if end, err := a.segment.End(); err == nil {
		root.Name("SegmentEnd").Int(int(end))
	}

	var stats memutils.DetailedStatistics
	a.detailedStatistics(&stats)
	total := root.Name("Total").Object()
	writeStatistics(&total, &stats)
	total.End()

	heapObj := root.Name("Heap").Object()
	a.blocks.BlockJsonData(heapObj)
	heapObj.End()

	if detailedMap {
		addresses := make([]uintptr, 0, a.live.Count())
		a.live.Iter(func(address, _ uintptr) bool {
			addresses = append(addresses, address)
			return false
		})
		slices.Sort(addresses)

		allocations := root.Name("Allocations").Array()
		for _, address := range addresses {
			size, _ := a.live.Get(address)

			obj := allocations.Object()
			obj.Name("Address").Int(int(address))
			obj.Name("Size").Int(int(size))
			obj.End()
		}
		allocations.End()
	}

	root.End()

	err := writer.Error()
	if err != nil {
		return cerrors.Wrap(err, "failed to build heap json")
	}

	_, err = w.Write(writer.Bytes())
	return err
}
