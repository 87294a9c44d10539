package metadata

import (
	"fmt"

	"github.com/vkngwrapper/heapalloc/memutils"
)

// Block describes the byte range [Address, Address+Size). It does not own the memory it
// describes, and copies of it may be passed around freely.
type Block struct {
	Address uintptr
	Size    uintptr
}

// End returns the address one past the last byte of the block
func (b Block) End() uintptr {
	return b.Address + b.Size
}

// Compare orders blocks by address
func (b Block) Compare(other Block) int {
	switch {
	case b.Address < other.Address:
		return -1
	case b.Address > other.Address:
		return 1
	default:
		return 0
	}
}

// LeftTo returns true if other begins exactly where b ends, in which case the two
// can be merged into a single block.
func (b Block) LeftTo(other Block) bool {
	return b.End() == other.Address
}

// Adjacent returns true if either block begins where the other ends
func (b Block) Adjacent(other Block) bool {
	return b.LeftTo(other) || other.LeftTo(b)
}

func (b Block) Contains(address uintptr) bool {
	return address >= b.Address && address < b.End()
}

// Overlaps returns true if the two blocks share at least one byte. Empty blocks
// overlap nothing.
func (b Block) Overlaps(other Block) bool {
	if b.Size == 0 || other.Size == 0 {
		return false
	}
	return b.Address < other.End() && other.Address < b.End()
}

// AlignPadding returns the number of bytes at the start of the block that must be skipped
// to reach an address aligned to alignment
func (b Block) AlignPadding(alignment uintptr) uintptr {
	return memutils.AlignPadding(b.Address, alignment)
}

func (b Block) String() string {
	return fmt.Sprintf("[%#x, %#x)", b.Address, b.End())
}

// EntryState separates real free ranges from list slots that only hold a place
// in the block list's storage.
type EntryState uint8

const (
	// EntryVacant marks a slot that does not describe any memory. Its address is kept only so
	// the slots stay ordered, and it is reused by the next insertion that reaches it.
	EntryVacant EntryState = iota
	// EntryFree marks a range of memory available for allocation
	EntryFree
)

var entryStateMapping = map[EntryState]string{
	EntryVacant: "Vacant",
	EntryFree:   "Free",
}

func (s EntryState) String() string {
	str, ok := entryStateMapping[s]
	if !ok {
		return fmt.Sprintf("EntryState(%d)", uint8(s))
	}
	return str
}

// Entry is a single slot in a BlockList
type Entry struct {
	Block
	State EntryState
}

// FreeEntry creates an entry recording block as free memory
func FreeEntry(block Block) Entry {
	return Entry{Block: block, State: EntryFree}
}

func (e Entry) IsFree() bool {
	return e.State == EntryFree
}

func (e Entry) IsVacant() bool {
	return e.State == EntryVacant
}
