package segment

// Counting wraps a Segment and records how often, and by how much, it has been grown.
type Counting struct {
	Segment

	grows int
	bytes uintptr
}

var _ Segment = &Counting{}

// NewCounting wraps inner in a Counting segment
func NewCounting(inner Segment) *Counting {
	return &Counting{Segment: inner}
}

func (c *Counting) Grow(size uintptr) (uintptr, error) {
	base, err := c.Segment.Grow(size)
	if err != nil {
		return base, err
	}

	c.grows++
	c.bytes += size
	return base, nil
}

// Grows returns the number of successful Grow calls
func (c *Counting) Grows() int { return c.grows }

// GrownBytes returns the total number of bytes added by successful Grow calls
func (c *Counting) GrownBytes() uintptr { return c.bytes }
