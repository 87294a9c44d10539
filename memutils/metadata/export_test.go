package metadata

import (
	"github.com/vkngwrapper/heapalloc/memutils"
	"github.com/vkngwrapper/heapalloc/memutils/segment"
)

// NewBlockListWithEntries builds a list whose storage holds exactly the provided entries,
// without checking them. It lets tests reach states the public operations never produce.
func NewBlockListWithEntries(region *segment.Region, entries []Entry) (*BlockList, error) {
	l := NewBlockList(region)
	if len(entries) == 0 {
		return l, nil
	}

	end, err := region.End()
	if err != nil {
		return nil, err
	}

	padding := memutils.AlignPadding(end, entryAlign)
	base, err := region.Grow(uintptr(len(entries))*entrySize + padding)
	if err != nil {
		return nil, err
	}

	l.storage = base + padding
	l.cap = len(entries)
	l.len = len(entries)
	copy(l.entries(), entries)
	return l, nil
}

// Check runs the same consistency check the list runs after every mutation
func (l *BlockList) Check() {
	l.check()
}
