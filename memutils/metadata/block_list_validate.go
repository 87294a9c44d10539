package metadata

import (
	"github.com/pkg/errors"
)

// Validate performs internal consistency checks on the list. It returns an error if the slots
// are out of address order, if two free ranges overlap or touch, if a free range overlaps the
// list's own storage, or if the length exceeds the capacity.
//
// When the list is functioning correctly, it should not be possible for this method to return
// an error. In builds with the debug_mem_utils tag it runs after every mutation, and any error
// panics.
func (l *BlockList) Validate() error {
	if l.len < 0 || l.len > l.cap {
		return errors.Errorf("the list length %d is not covered by its capacity %d", l.len, l.cap)
	}

	if l.cap > 0 && l.storage%entryAlign != 0 {
		return errors.Errorf("the list storage at %#x is not aligned to %d", l.storage, entryAlign)
	}

	storage := l.Storage()
	slots := l.entries()
	last := -1

	for index, entry := range slots {
		if index > 0 && entry.Address < slots[index-1].Address {
			return errors.Errorf("the slot at index %d (%#x) is ordered after the slot at index %d (%#x)",
				index, entry.Address, index-1, slots[index-1].Address)
		}

		switch entry.State {
		case EntryVacant:
			if entry.Size != 0 {
				return errors.Errorf("the vacant slot at index %d has a size of %d", index, entry.Size)
			}
			continue
		case EntryFree:
		default:
			return errors.Errorf("the slot at index %d has unknown state %s", index, entry.State)
		}

		if entry.Size == 0 {
			return errors.Errorf("the free range at index %d is empty", index)
		}

		if entry.End() < entry.Address {
			return errors.Errorf("the free range at index %d wraps around the address space", index)
		}

		if entry.Overlaps(storage) {
			return errors.Errorf("the free range %s at index %d overlaps the list storage %s", entry.Block, index, storage)
		}

		if last >= 0 {
			prev := slots[last]
			if entry.Address <= prev.Address {
				return errors.Errorf("the block list is not sorted at index %d", index)
			}

			if prev.End() >= entry.Address {
				return errors.Errorf("the free ranges %s at index %d and %s at index %d are overlapping or adjacent",
					prev.Block, last, entry.Block, index)
			}
		}

		last = index
	}

	return nil
}
