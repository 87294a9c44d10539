//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package segment

// Break falls back to a Region on platforms without mmap. The whole reservation is
// allocated from the Go heap up front.
type Break struct {
	*Region
}

var _ Segment = &Break{}

// NewBreak reserves reserve bytes for the break to grow into.
func NewBreak(reserve int) (*Break, error) {
	return &Break{Region: NewRegion(reserve)}, nil
}

// Release is a no-op; the memory is reclaimed by the Go runtime once the Break is unreachable.
func (b *Break) Release() error {
	return nil
}
