// Package tracking follows the ball across frames, extrapolating its position
// through short detection gaps.
package tracking

import (
	"fmt"

	"github.com/ayusman/courtside/internal/detector"
)

// Status is the lifecycle state of the tracked ball.
type Status int

const (
	// StatusEmpty means the ball has never been seen.
	StatusEmpty Status = iota
	// StatusTracked means the ball was detected this frame.
	StatusTracked
	// StatusPredicted means the position was extrapolated from the last velocity.
	StatusPredicted
	// StatusLost means the ball has been missing for too long.
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusTracked:
		return "tracked"
	case StatusPredicted:
		return "predicted"
	case StatusLost:
		return "lost"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Point is a position or displacement in image pixels.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// BallState is the tracker's view of the ball after a frame.
// Position and Velocity are nil when unknown.
type BallState struct {
	Position     *Point  `json:"position,omitempty"`
	Velocity     *Point  `json:"velocity,omitempty"`
	Status       Status  `json:"status"`
	MissingCount int     `json:"missing_count"`
	Confidence   float64 `json:"confidence"`
	// Size is the width and height of the last detected box.
	Size Point `json:"size"`
}

// Box returns the ball's bounding box centered on Position, or false if the
// position is unknown.
func (s BallState) Box() (detector.BBox, bool) {
	if s.Position == nil {
		return detector.BBox{}, false
	}
	hw, hh := s.Size.X/2, s.Size.Y/2
	return detector.BBox{
		X1: s.Position.X - hw,
		Y1: s.Position.Y - hh,
		X2: s.Position.X + hw,
		Y2: s.Position.Y + hh,
	}, true
}

func (s BallState) clone() BallState {
	out := s
	if s.Position != nil {
		p := *s.Position
		out.Position = &p
	}
	if s.Velocity != nil {
		v := *s.Velocity
		out.Velocity = &v
	}
	return out
}

// Config holds tracker parameters.
type Config struct {
	// MaxMissed is the number of consecutive frames the ball may be missing
	// before it is declared lost.
	MaxMissed int
	// TrajectorySize is the capacity of the trajectory ring.
	TrajectorySize int
	// PredictedConfidence is reported for extrapolated positions.
	PredictedConfidence float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxMissed:           5,
		TrajectorySize:      30,
		PredictedConfidence: 0.3,
	}
}

// BallTracker is a dead-reckoning state machine over per-frame ball detections.
// It is not safe for concurrent use; each pipeline run owns one.
type BallTracker struct {
	config     Config
	state      BallState
	trajectory *TrajectoryRing
}

// NewBallTracker creates a tracker in the empty state.
func NewBallTracker(config Config) *BallTracker {
	if config.MaxMissed < 0 {
		config.MaxMissed = 0
	}
	if config.TrajectorySize <= 0 {
		config.TrajectorySize = DefaultConfig().TrajectorySize
	}
	return &BallTracker{
		config:     config,
		trajectory: NewTrajectoryRing(config.TrajectorySize),
	}
}

// Update advances the tracker by one frame. det is nil when no ball was detected.
func (t *BallTracker) Update(det *detector.Detection) BallState {
	if det != nil {
		t.observe(det)
		return t.State()
	}

	s := &t.state
	if s.Position != nil && s.MissingCount < t.config.MaxMissed {
		if s.Velocity != nil {
			p := s.Position.Add(*s.Velocity)
			s.Position = &p
		}
		s.Status = StatusPredicted
		s.MissingCount++
		s.Confidence = t.config.PredictedConfidence
		return t.State()
	}

	s.Status = StatusLost
	s.Position = nil
	s.Velocity = nil
	s.MissingCount = 0
	s.Confidence = 0
	return t.State()
}

func (t *BallTracker) observe(det *detector.Detection) {
	cx, cy := det.BBox.Center()
	center := Point{X: cx, Y: cy}

	s := &t.state
	if s.Position != nil {
		v := center.Sub(*s.Position)
		s.Velocity = &v
	}
	s.Position = &center
	s.Status = StatusTracked
	s.MissingCount = 0
	s.Confidence = det.Confidence
	s.Size = Point{X: det.BBox.Width(), Y: det.BBox.Height()}

	t.trajectory.Push(center)
}

// State returns a copy of the current ball state.
func (t *BallTracker) State() BallState {
	return t.state.clone()
}

// Trajectory returns the recent detected positions, oldest first.
func (t *BallTracker) Trajectory() []Point {
	return t.trajectory.Positions()
}
