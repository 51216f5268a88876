package timeline

// Options controls coalescing.
type Options struct {
	// GapTolerance is the largest gap, in seconds, between two same-label
	// segments that still merges them.
	GapTolerance float64
	// MinDuration is the shortest segment, in seconds, kept on its own.
	MinDuration float64
}

// DefaultOptions returns the standard coalescing options.
func DefaultOptions() Options {
	return Options{
		GapTolerance: 0.5,
		MinDuration:  0.3,
	}
}

// mergeable reports whether next continues the segment being built.
func mergeable(b *Builder, next Segment, gapTol float64) bool {
	return next.Label == b.Label() && next.StartTime-b.EndTime() <= gapTol
}

// MergeAdjacent merges consecutive segments that share a label and are no more
// than gapTol seconds apart. Input order is preserved and inputs are not
// modified.
func MergeAdjacent(segs []Segment, gapTol float64) []Segment {
	if len(segs) == 0 {
		return nil
	}

	out := make([]Segment, 0, len(segs))
	cur := NewBuilder(segs[0])
	for _, next := range segs[1:] {
		if mergeable(cur, next, gapTol) {
			cur.Absorb(next)
			continue
		}
		out = append(out, cur.Build())
		cur = NewBuilder(next)
	}
	return append(out, cur.Build())
}

// FilterShort folds every segment shorter than opts.MinDuration into the
// previous kept segment. A short segment with nothing before it is kept. When
// absorbing noise leaves the kept segment adjacent to a same-label successor
// within opts.GapTolerance, the two are joined so a flicker never splits one
// action in two.
func FilterShort(segs []Segment, opts Options) []Segment {
	if len(segs) == 0 {
		return nil
	}

	out := make([]Segment, 0, len(segs))
	var kept *Builder
	for _, s := range segs {
		if kept != nil && (s.Duration() < opts.MinDuration || mergeable(kept, s, opts.GapTolerance)) {
			kept.Absorb(s)
			continue
		}
		if kept != nil {
			out = append(out, kept.Build())
		}
		kept = NewBuilder(s)
	}
	return append(out, kept.Build())
}

// Coalesce runs the adjacency merge followed by short-segment filtering.
func Coalesce(segs []Segment, opts Options) []Segment {
	return FilterShort(MergeAdjacent(segs, opts.GapTolerance), opts)
}
