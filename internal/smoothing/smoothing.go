// Package smoothing stabilizes the per-window action label for live display.
package smoothing

import "github.com/ayusman/courtside/internal/action"

// MinSamples is the fewest labels a vote needs before it overrides the
// current label.
const MinSamples = 3

// TieBreak picks a winner when several labels share the top count.
type TieBreak int

const (
	// TieBreakMostRecent prefers the tied label seen last.
	TieBreakMostRecent TieBreak = iota
	// TieBreakFirstSeen prefers the tied label seen first.
	TieBreakFirstSeen
	// TieBreakCurrent prefers the current label when it is tied and
	// otherwise behaves like TieBreakMostRecent.
	TieBreakCurrent
)

func (tb TieBreak) String() string {
	switch tb {
	case TieBreakFirstSeen:
		return "first_seen"
	case TieBreakCurrent:
		return "current"
	default:
		return "most_recent"
	}
}

// ParseTieBreak maps a config string to a TieBreak. Unknown values fall back
// to TieBreakMostRecent.
func ParseTieBreak(s string) TieBreak {
	switch s {
	case "first_seen":
		return TieBreakFirstSeen
	case "current":
		return TieBreakCurrent
	default:
		return TieBreakMostRecent
	}
}

// Smooth returns the most frequent label in history followed by current.
// With fewer than MinSamples labels in total, current is returned unchanged.
func Smooth(history []action.Label, current action.Label, tb TieBreak) action.Label {
	if len(history)+1 < MinSamples {
		return current
	}

	counts := make(map[action.Label]int, len(history)+1)
	first := make(map[action.Label]int, len(history)+1)
	last := make(map[action.Label]int, len(history)+1)
	best := 0

	tally := func(i int, l action.Label) {
		if _, ok := first[l]; !ok {
			first[l] = i
		}
		last[l] = i
		counts[l]++
		best = max(best, counts[l])
	}
	for i, l := range history {
		tally(i, l)
	}
	tally(len(history), current)

	if tb == TieBreakCurrent && counts[current] == best {
		return current
	}

	var winner action.Label
	pos := -1
	for l, n := range counts {
		if n != best {
			continue
		}
		switch tb {
		case TieBreakFirstSeen:
			if pos < 0 || first[l] < pos {
				winner, pos = l, first[l]
			}
		default:
			if last[l] > pos {
				winner, pos = l, last[l]
			}
		}
	}
	return winner
}

// Smoother holds a bounded history of raw labels and votes over it. It is not
// safe for concurrent use.
type Smoother struct {
	ring     []action.Label
	capacity int
	tieBreak TieBreak
}

// NewSmoother creates a Smoother that remembers up to capacity labels,
// including the most recent one. A capacity below 1 is treated as 1.
func NewSmoother(capacity int, tb TieBreak) *Smoother {
	capacity = max(capacity, 1)
	return &Smoother{
		ring:     make([]action.Label, 0, capacity),
		capacity: capacity,
		tieBreak: tb,
	}
}

// Push records label, evicting the oldest entry when full, and returns the
// smoothed label.
func (s *Smoother) Push(label action.Label) action.Label {
	if len(s.ring) == s.capacity {
		copy(s.ring, s.ring[1:])
		s.ring = s.ring[:len(s.ring)-1]
	}
	s.ring = append(s.ring, label)
	return Smooth(s.ring[:len(s.ring)-1], label, s.tieBreak)
}

// Len returns the number of labels held.
func (s *Smoother) Len() int { return len(s.ring) }

// Reset clears the history.
func (s *Smoother) Reset() { s.ring = s.ring[:0] }
