package tracking

// TrajectoryRing is a fixed-capacity FIFO of ball positions. The oldest entry
// is overwritten once the ring is full.
type TrajectoryRing struct {
	buf   []Point
	start int
	n     int
}

// NewTrajectoryRing creates a ring holding at most capacity positions.
func NewTrajectoryRing(capacity int) *TrajectoryRing {
	if capacity < 1 {
		capacity = 1
	}
	return &TrajectoryRing{buf: make([]Point, capacity)}
}

// Push appends p, evicting the oldest position when full.
func (r *TrajectoryRing) Push(p Point) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = p
		r.n++
		return
	}
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of stored positions.
func (r *TrajectoryRing) Len() int { return r.n }

// Cap returns the ring capacity.
func (r *TrajectoryRing) Cap() int { return len(r.buf) }

// Positions returns a copy of the stored positions, oldest first.
func (r *TrajectoryRing) Positions() []Point {
	out := make([]Point, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Last returns the newest position, or false if the ring is empty.
func (r *TrajectoryRing) Last() (Point, bool) {
	if r.n == 0 {
		return Point{}, false
	}
	return r.buf[(r.start+r.n-1)%len(r.buf)], true
}
