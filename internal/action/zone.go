package action

import "math"

// Zone is a shot region on the court.
type Zone string

// Court zones.
const (
	ZoneFreeThrow  Zone = "free_throw"
	ZonePaint      Zone = "paint"
	ZoneTwoPoint   Zone = "two_point"
	ZoneThreePoint Zone = "three_point"
)

// ShotLabel returns the label used for a shot taken from z. The paint has no
// shot label of its own.
func (z Zone) ShotLabel() (Label, bool) {
	switch z {
	case ZoneFreeThrow:
		return FreeThrow, true
	case ZoneTwoPoint:
		return TwoPointShot, true
	case ZoneThreePoint:
		return ThreePointShot, true
	}
	return "", false
}

// Point is a position in image pixels.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Range is a closed distance interval in metres.
type Range struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// Contains reports whether d lies in r.
func (r Range) Contains(d float64) bool {
	return d >= r.Min && d <= r.Max
}

// ZoneBoundaries gives each zone's distance from the hoop.
type ZoneBoundaries struct {
	FreeThrow      Range   `mapstructure:"free_throw" json:"free_throw"`
	Paint          Range   `mapstructure:"paint" json:"paint"`
	TwoPoint       Range   `mapstructure:"two_point" json:"two_point"`
	ThreePoint     Range   `mapstructure:"three_point" json:"three_point"`
	PixelsPerMeter float64 `mapstructure:"pixels_per_meter" json:"pixels_per_meter"`
}

// DefaultZoneBoundaries returns standard court distances in metres.
func DefaultZoneBoundaries() ZoneBoundaries {
	return ZoneBoundaries{
		FreeThrow:      Range{Min: 4.2, Max: 4.9},
		Paint:          Range{Min: 0, Max: 1.5},
		TwoPoint:       Range{Min: 1.5, Max: 6.75},
		ThreePoint:     Range{Min: 6.75, Max: 10.0},
		PixelsPerMeter: 50,
	}
}

// ZoneClassifier maps a ball position to a court zone.
type ZoneClassifier interface {
	ClassifyZone(ball, hoop Point, zones ZoneBoundaries) (Zone, bool)
}

// DistanceZoneClassifier classifies by straight-line distance from the hoop.
// The free-throw band is checked first since it lies inside the two-point range.
type DistanceZoneClassifier struct{}

// ClassifyZone returns the zone containing ball, or false if the distance
// falls outside every zone or the scale is unknown.
func (DistanceZoneClassifier) ClassifyZone(ball, hoop Point, zones ZoneBoundaries) (Zone, bool) {
	if zones.PixelsPerMeter <= 0 {
		return "", false
	}

	d := math.Hypot(ball.X-hoop.X, ball.Y-hoop.Y) / zones.PixelsPerMeter

	switch {
	case zones.FreeThrow.Contains(d):
		return ZoneFreeThrow, true
	case zones.Paint.Contains(d):
		return ZonePaint, true
	case zones.TwoPoint.Contains(d):
		return ZoneTwoPoint, true
	case zones.ThreePoint.Contains(d):
		return ZoneThreePoint, true
	}
	return "", false
}
