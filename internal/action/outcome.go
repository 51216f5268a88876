package action

import "math"

// Shot outcomes.
const (
	OutcomeMade   = "made"
	OutcomeMissed = "missed"
)

// MethodTrajectory marks an outcome read from the ball's path.
const MethodTrajectory = "ball_trajectory"

// DefaultRimRadius is the rim radius in metres.
const DefaultRimRadius = 0.23

// ShotOutcome is the result of a shot.
type ShotOutcome struct {
	Outcome         string  `json:"outcome" msgpack:"outcome"`
	Confidence      float64 `json:"confidence" msgpack:"confidence"`
	Method          string  `json:"method" msgpack:"method"`
	MakeProbability float64 `json:"make_probability" msgpack:"make_probability"`
}

// OutcomeClassifier decides whether a shot went in from the ball's path.
type OutcomeClassifier interface {
	// ClassifyOutcome returns false when the path does not settle the
	// question.
	ClassifyOutcome(path []Point, hoop Point, zones ZoneBoundaries) (ShotOutcome, bool)
}

// TrajectoryOutcomeClassifier looks for the ball dropping through the rim
// plane. Image y grows downwards.
type TrajectoryOutcomeClassifier struct {
	// RimRadius is in metres; zero means DefaultRimRadius.
	RimRadius float64
}

// ClassifyOutcome reports made when the ball drops through the rim plane
// within one rim radius of the hoop centre, and missed when it drops through
// the plane beside the rim. Confidence is higher for a drop close to the rim
// than for one far wide of it. Fewer than three points, or a path that never
// falls through rim height, is inconclusive.
func (c TrajectoryOutcomeClassifier) ClassifyOutcome(path []Point, hoop Point, zones ZoneBoundaries) (ShotOutcome, bool) {
	if len(path) < 3 || zones.PixelsPerMeter <= 0 {
		return ShotOutcome{}, false
	}
	radius := c.RimRadius
	if radius <= 0 {
		radius = DefaultRimRadius
	}
	rim := radius * zones.PixelsPerMeter

	nearest := math.Inf(1)
	crossed := false
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		if a.Y >= hoop.Y || b.Y < hoop.Y {
			continue
		}
		crossed = true
		x := a.X + (b.X-a.X)*(hoop.Y-a.Y)/(b.Y-a.Y)
		nearest = math.Min(nearest, math.Abs(x-hoop.X))
	}

	switch {
	case crossed && nearest <= rim:
		return outcome(OutcomeMade, 0.6+0.3*(1-nearest/rim)), true
	case crossed && nearest <= 3*rim:
		return outcome(OutcomeMissed, 0.6), true
	case crossed:
		return outcome(OutcomeMissed, 0.5), true
	}
	return ShotOutcome{}, false
}

func outcome(result string, confidence float64) ShotOutcome {
	prob := 0.1
	if result == OutcomeMade {
		prob = 0.9
	}
	return ShotOutcome{
		Outcome:         result,
		Confidence:      confidence,
		Method:          MethodTrajectory,
		MakeProbability: prob,
	}
}
