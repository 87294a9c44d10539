package metadata

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/heapalloc/memutils"
	"github.com/vkngwrapper/heapalloc/memutils/segment"
	"golang.org/x/exp/slices"
)

const (
	brkMultiplier uintptr = 1
	brkMin        uintptr = 200
	brkMinExtra   uintptr = 500

	// maxNewEntries is the largest number of slots a single Alloc, Free or Realloc can add
	// to the list: a relocating Realloc may record an alignment stub and a tail while
	// allocating and then one more range when freeing the old block.
	maxNewEntries = 3

	maxAddress = ^uintptr(0)
)

var (
	entrySize  = unsafe.Sizeof(Entry{})
	entryAlign = unsafe.Alignof(Entry{})
)

// CanonicalSize returns the number of bytes requested from the segment when size bytes are
// needed and no free range can hold them. Requests are padded by up to 500 bytes (never more
// than doubling them) and are never smaller than 200 bytes, so that small allocations do not
// each cost a segment extension. size must not exceed ^uintptr(0)-500.
func CanonicalSize(size uintptr) uintptr {
	return memutils.Max(brkMin, size+memutils.Min(brkMultiplier*size, brkMinExtra))
}

// BlockList tracks the free ranges of a forward-growing heap. Free ranges are kept in a single
// array sorted by address, and allocations are carved from the lowest-addressed range that
// can hold them. When nothing fits, the list grows its segment.
//
// The array itself lives in memory managed by the list, and is grown through the list's
// own Realloc path. The list is not safe for concurrent use.
//
// Callers must pass Free and Realloc exactly the block returned by an earlier allocation.
// Double frees, mismatched sizes and foreign addresses are not detected.
type BlockList struct {
	segment segment.Segment

	storage uintptr
	cap     int
	len     int

	growthCount  int
	segmentBytes uintptr
}

var _ memutils.Validatable = &BlockList{}

// NewBlockList creates an empty list that will grow into seg. No memory is requested
// until the first allocation.
func NewBlockList(seg segment.Segment) *BlockList {
	return &BlockList{segment: seg}
}

// placement is a decision about where an allocation will go, made before the list is
// mutated. index is the free entry being split, or -1 when the allocation comes from
// freshly grown segment memory starting at base.
type placement struct {
	index   int
	block   Block
	padding uintptr

	base  uintptr
	grown uintptr
}

func (l *BlockList) slots() []Entry {
	if l.cap == 0 {
		return nil
	}
	return unsafe.Slice((*Entry)(unsafe.Pointer(l.storage)), l.cap)
}

func (l *BlockList) entries() []Entry {
	return l.slots()[:l.len]
}

// Len returns the number of occupied slots, including vacant ones
func (l *BlockList) Len() int { return l.len }

// Cap returns the number of slots the list's storage can hold
func (l *BlockList) Cap() int { return l.cap }

// Storage returns the block of managed memory holding the list's own slots
func (l *BlockList) Storage() Block {
	return Block{Address: l.storage, Size: uintptr(l.cap) * entrySize}
}

func checkRequest(size, align uintptr) error {
	if size == 0 {
		return memutils.ErrInvalidSize
	}
	return memutils.CheckAlignment(align)
}

// Alloc returns the address of size bytes aligned to align, which must be a power of two.
// The returned range does not overlap any live allocation or recorded free range. The
// segment is grown when no free range is large enough.
func (l *BlockList) Alloc(size, align uintptr) (uintptr, error) {
	err := checkRequest(size, align)
	if err != nil {
		return 0, err
	}

	err = l.reserve(l.len + maxNewEntries)
	if err != nil {
		return 0, err
	}

	address, err := l.alloc(size, align)
	if err != nil {
		return 0, err
	}

	l.check()
	return address, nil
}

// Free returns block to the list, merging it with the free ranges on either side.
func (l *BlockList) Free(block Block) error {
	if block.Size == 0 {
		return nil
	}

	err := l.reserve(l.len + maxNewEntries)
	if err != nil {
		return err
	}

	l.free(block)
	l.check()
	return nil
}

// Realloc resizes block to newSize bytes aligned to align. The block is resized in place
// when possible: shrinking always succeeds in place if the address satisfies align, and
// growing succeeds in place if a large enough free range follows the block. Otherwise the
// first min(block.Size, newSize) bytes are copied to a new allocation and block is freed.
func (l *BlockList) Realloc(block Block, newSize, align uintptr) (uintptr, error) {
	err := checkRequest(newSize, align)
	if err != nil {
		return 0, err
	}

	err = l.reserve(l.len + maxNewEntries)
	if err != nil {
		return 0, err
	}

	address, err := l.realloc(block, newSize, align)
	if err != nil {
		return 0, err
	}

	l.check()
	return address, nil
}

func (l *BlockList) alloc(size, align uintptr) (uintptr, error) {
	p, err := l.place(size, align)
	if err != nil {
		return 0, err
	}

	return l.commit(p), nil
}

func (l *BlockList) realloc(block Block, newSize, align uintptr) (uintptr, error) {
	if l.reallocInPlace(block, newSize, align) {
		return block.Address, nil
	}

	address, err := l.alloc(newSize, align)
	if err != nil {
		return 0, err
	}

	copyMemory(address, block.Address, memutils.Min(block.Size, newSize))
	l.free(block)
	return address, nil
}

func (l *BlockList) reallocInPlace(block Block, newSize, align uintptr) bool {
	if block.Address%align != 0 {
		return false
	}

	if newSize == block.Size {
		return true
	}

	if newSize < block.Size {
		l.free(Block{Address: block.Address + newSize, Size: block.Size - newSize})
		return true
	}

	next := l.nextFree(l.search(block.Address))
	if next < 0 {
		return false
	}

	slots := l.entries()
	additional := newSize - block.Size
	if !block.LeftTo(slots[next].Block) || slots[next].Size < additional {
		return false
	}

	if slots[next].Size == additional {
		l.vacate(next)
	} else {
		slots[next].Address += additional
		slots[next].Size -= additional
		l.raise(next)
	}

	return true
}

// place finds room for an allocation. Only the segment is touched; the list is left
// exactly as it was so the decision can be committed to relocated storage.
func (l *BlockList) place(size, align uintptr) (placement, error) {
	p, ok := l.findFit(size, align)
	if ok {
		return p, nil
	}

	return l.growSegment(size, align)
}

// findFit scans from the highest address down and keeps the last match, so the
// lowest-addressed free range that fits wins.
func (l *BlockList) findFit(size, align uintptr) (placement, bool) {
	var p placement
	found := false

	slots := l.entries()
	for i := len(slots) - 1; i >= 0; i-- {
		entry := slots[i]
		if !entry.IsFree() {
			continue
		}

		padding := entry.AlignPadding(align)
		if entry.Size < padding || entry.Size-padding < size {
			continue
		}

		p = placement{
			index:   i,
			block:   Block{Address: entry.Address + padding, Size: size},
			padding: padding,
		}
		found = true
	}

	return p, found
}

func (l *BlockList) growSegment(size, align uintptr) (placement, error) {
	if size > maxAddress-brkMinExtra {
		return placement{}, cerrors.Wrapf(memutils.ErrOutOfMemory,
			"a segment cannot grow to hold %d bytes", size)
	}
	canonical := CanonicalSize(size)

	end, err := l.segment.End()
	if err != nil {
		return placement{}, cerrors.Wrap(err, "failed to query the segment end")
	}

	padding := memutils.AlignPadding(end, align)
	if padding > maxAddress-canonical || end > maxAddress-canonical-padding {
		return placement{}, cerrors.Wrapf(memutils.ErrOutOfMemory,
			"a segment ending at %#x cannot grow by %d bytes aligned to %d", end, canonical, align)
	}
	grown := canonical + padding

	base, err := l.segment.Grow(grown)
	if err != nil {
		return placement{}, cerrors.Wrapf(err, "failed to grow the segment by %d bytes", grown)
	}

	l.growthCount++
	l.segmentBytes += grown

	if base < end {
		return placement{}, cerrors.Wrapf(memutils.ErrSegmentMoved,
			"expected new space at %#x but it began below, at %#x", end, base)
	}

	if base != end {
		padding = memutils.AlignPadding(base, align)
		if grown < padding || grown-padding < size {
			return placement{}, cerrors.Wrapf(memutils.ErrSegmentMoved,
				"expected new space at %#x but it began at %#x", end, base)
		}
	}

	return placement{
		index:   -1,
		block:   Block{Address: base + padding, Size: size},
		padding: padding,
		base:    base,
		grown:   grown,
	}, nil
}

func (l *BlockList) commit(p placement) uintptr {
	if p.index < 0 {
		l.commitGrowth(p)
	} else {
		l.commitSplit(p)
	}

	return p.block.Address
}

func (l *BlockList) commitSplit(p placement) {
	slots := l.entries()
	entry := &slots[p.index]
	tail := Block{Address: p.block.End(), Size: entry.End() - p.block.End()}

	if p.padding == 0 {
		if tail.Size == 0 {
			l.vacate(p.index)
			return
		}

		entry.Block = tail
		l.raise(p.index)
		return
	}

	entry.Size = p.padding
	if tail.Size > 0 {
		l.insert(l.search(tail.Address), FreeEntry(tail))
	}
}

// commitGrowth records the alignment stub and the unused tail of freshly grown memory.
// Both lie above every existing entry, so they are appended.
func (l *BlockList) commitGrowth(p placement) {
	if p.padding > 0 {
		stub := Block{Address: p.base, Size: p.padding}
		last := l.prevFree(l.len)

		slots := l.entries()
		if last >= 0 && slots[last].LeftTo(stub) {
			slots[last].Size += stub.Size
		} else {
			l.push(FreeEntry(stub))
		}
	}

	tail := Block{Address: p.block.End(), Size: p.base + p.grown - p.block.End()}
	if tail.Size > 0 {
		l.push(FreeEntry(tail))
	}
}

func (l *BlockList) free(block Block) {
	if block.Size == 0 {
		return
	}

	index := l.search(block.Address)
	prev := l.prevFree(index)
	next := l.nextFree(index)
	slots := l.entries()

	mergedLeft := false
	if prev >= 0 && slots[prev].LeftTo(block) {
		slots[prev].Size += block.Size
		mergedLeft = true
	}

	if next >= 0 && block.LeftTo(slots[next].Block) {
		if mergedLeft {
			slots[prev].Size += slots[next].Size
			l.vacate(next)
			return
		}

		slots[next].Address = block.Address
		slots[next].Size += block.Size
		l.lower(next)
		return
	}

	if !mergedLeft {
		l.insert(index, FreeEntry(block))
	}
}

// insert places entry at index, shifting only the slots between index and the first
// vacant slot at or after it. The list only takes a new slot when no vacant slot is ahead.
func (l *BlockList) insert(index int, entry Entry) {
	slots := l.entries()

	vacant := -1
	for i := index; i < len(slots); i++ {
		if slots[i].IsVacant() {
			vacant = i
			break
		}
	}

	if vacant < 0 {
		if l.len == l.cap {
			panic("block list storage exhausted: capacity must be reserved before the list is modified")
		}

		l.len++
		slots = l.entries()
		vacant = l.len - 1
	}

	copy(slots[index+1:vacant+1], slots[index:vacant])
	slots[index] = entry
}

func (l *BlockList) push(entry Entry) {
	if l.len == l.cap {
		panic("block list storage exhausted: capacity must be reserved before the list is modified")
	}

	l.len++
	l.entries()[l.len-1] = entry
}

// vacate turns a slot into a placeholder. Vacant slots at the end of the list are dropped.
func (l *BlockList) vacate(index int) {
	slots := l.entries()
	slots[index].State = EntryVacant
	slots[index].Size = 0

	for l.len > 0 && l.entries()[l.len-1].IsVacant() {
		l.len--
	}
}

// raise lifts the addresses of vacant slots following index so that they are not lower
// than the entry at index, after that entry's address has increased.
func (l *BlockList) raise(index int) {
	slots := l.entries()
	address := slots[index].Address
	for i := index + 1; i < len(slots) && slots[i].IsVacant() && slots[i].Address < address; i++ {
		slots[i].Address = address
	}
}

// lower drops the addresses of vacant slots preceding index so that they are not higher
// than the entry at index, after that entry's address has decreased.
func (l *BlockList) lower(index int) {
	slots := l.entries()
	address := slots[index].Address
	for i := index - 1; i >= 0 && slots[i].IsVacant() && slots[i].Address > address; i-- {
		slots[i].Address = address
	}
}

// search returns the index of the first slot whose address is not below address
func (l *BlockList) search(address uintptr) int {
	index, _ := slices.BinarySearchFunc(l.entries(), address, func(entry Entry, target uintptr) int {
		return entry.Compare(Block{Address: target})
	})
	return index
}

// prevFree returns the index of the last free entry before index, or -1
func (l *BlockList) prevFree(index int) int {
	slots := l.entries()
	for i := index - 1; i >= 0; i-- {
		if slots[i].IsFree() {
			return i
		}
	}
	return -1
}

// nextFree returns the index of the first free entry at or after index, or -1
func (l *BlockList) nextFree(index int) int {
	slots := l.entries()
	for i := index; i < len(slots); i++ {
		if slots[i].IsFree() {
			return i
		}
	}
	return -1
}

// reserve makes sure the storage holds at least needed slots, doubling the request to
// amortize growth. The storage is resized through the same path as any other Realloc,
// except that a relocation copies the slots before the allocation is recorded, so the
// bookkeeping for the new storage is written into the new storage.
//
// needed must leave room for the slots that the relocation itself adds.
func (l *BlockList) reserve(needed int) error {
	if needed <= l.cap {
		return nil
	}

	memutils.DebugCheckPow2(entryAlign, "entry alignment")

	newCap := needed * 2
	old := l.Storage()
	size := uintptr(newCap) * entrySize

	if old.Size > 0 && l.reallocInPlace(old, size, entryAlign) {
		l.cap = newCap
		l.check()
		return nil
	}

	p, err := l.place(size, entryAlign)
	if err != nil {
		return cerrors.Wrapf(err, "failed to grow block list storage to %d entries", newCap)
	}

	if l.len > 0 {
		copyMemory(p.block.Address, l.storage, uintptr(l.len)*entrySize)
	}
	l.storage = p.block.Address
	l.cap = newCap

	l.commit(p)
	l.free(old)

	l.check()
	return nil
}

func copyMemory(dst, src, size uintptr) {
	if size == 0 || dst == src {
		return
	}

	copy(
		unsafe.Slice((*byte)(unsafe.Pointer(dst)), size),
		unsafe.Slice((*byte)(unsafe.Pointer(src)), size),
	)
}

func (l *BlockList) check() {
	memutils.DebugValidate(l)
}
