package timeline

// Coalescer applies the adjacency merge online as raw segments arrive and
// produces the filtered timeline on demand. It is not safe for concurrent use.
type Coalescer struct {
	opts    Options
	closed  []Segment
	current *Builder
	raw     []Segment
}

// NewCoalescer creates an empty Coalescer.
func NewCoalescer(opts Options) *Coalescer {
	return &Coalescer{opts: opts}
}

// Append folds a raw segment into the running state. seg is copied.
func (c *Coalescer) Append(seg Segment) {
	c.raw = append(c.raw, seg.Clone())

	if c.current == nil {
		c.current = NewBuilder(seg)
		return
	}
	if mergeable(c.current, seg, c.opts.GapTolerance) {
		c.current.Absorb(seg)
		return
	}
	c.closed = append(c.closed, c.current.Build())
	c.current = NewBuilder(seg)
}

// Len returns the number of raw segments appended so far.
func (c *Coalescer) Len() int {
	return len(c.raw)
}

// Raw returns copies of every raw segment appended so far.
func (c *Coalescer) Raw() []Segment {
	out := make([]Segment, len(c.raw))
	for i, s := range c.raw {
		out[i] = s.Clone()
	}
	return out
}

// Timeline returns the coalesced timeline for everything appended so far. It
// can be called at any point without disturbing later appends.
func (c *Coalescer) Timeline() []Segment {
	if c.current == nil {
		return nil
	}
	pass1 := make([]Segment, 0, len(c.closed)+1)
	pass1 = append(pass1, c.closed...)
	pass1 = append(pass1, c.current.Build())
	return FilterShort(pass1, c.opts)
}
