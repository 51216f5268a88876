package detector

import "math"

// Pose landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose          = 0
	LeftShoulder  = 11
	RightShoulder = 12
	LeftElbow     = 13
	RightElbow    = 14
	LeftWrist     = 15
	RightWrist    = 16
	LeftHip       = 23
	RightHip      = 24
	LeftKnee      = 25
	RightKnee     = 26
	LeftAnkle     = 27
	RightAnkle    = 28
	NumLandmarks  = 33
)

// Keypoint is a single normalized landmark. Y grows downward.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Pose represents the 33 body landmarks detected by MediaPipe.
type Pose struct {
	Points [NumLandmarks]Keypoint `json:"points"`
	Score  float64                `json:"score"`
}

// Vec2 is a 2D point.
type Vec2 struct {
	X float64
	Y float64
}

// Sub returns a - b.
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Y - b.Y} }

// Norm returns the Euclidean length of a.
func (a Vec2) Norm() float64 { return math.Hypot(a.X, a.Y) }

// At returns the 2D position of the landmark at index i.
func (p *Pose) At(i int) Vec2 {
	return Vec2{p.Points[i].X, p.Points[i].Y}
}

// HipCenter returns the midpoint of both hips, used as the center of mass proxy.
func (p *Pose) HipCenter() Vec2 {
	l, r := p.At(LeftHip), p.At(RightHip)
	return Vec2{(l.X + r.X) / 2, (l.Y + r.Y) / 2}
}

// ShoulderCenter returns the midpoint of both shoulders.
func (p *Pose) ShoulderCenter() Vec2 {
	l, r := p.At(LeftShoulder), p.At(RightShoulder)
	return Vec2{(l.X + r.X) / 2, (l.Y + r.Y) / 2}
}

// TorsoLength returns the distance from hip center to shoulder center.
func (p *Pose) TorsoLength() float64 {
	return p.ShoulderCenter().Sub(p.HipCenter()).Norm()
}

// JointAngle returns the angle at b, in degrees, formed by the segments b-a
// and b-c. Returns 0 when either segment is degenerate.
func (p *Pose) JointAngle(a, b, c int) float64 {
	ba := p.At(a).Sub(p.At(b))
	bc := p.At(c).Sub(p.At(b))
	na, nc := ba.Norm(), bc.Norm()
	if na == 0 || nc == 0 {
		return 0
	}
	cos := (ba.X*bc.X + ba.Y*bc.Y) / (na * nc)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Normalize returns a copy of the pose translated so the hip center is at the
// origin and scaled so the torso length is 1.0.
func (p *Pose) Normalize() *Pose {
	if p == nil {
		return nil
	}
	return p.normalizeTo(p.HipCenter(), p.TorsoLength())
}

func (p *Pose) normalizeTo(origin Vec2, scale float64) *Pose {
	if scale == 0 {
		scale = 1
	}

	normalized := &Pose{Score: p.Score}
	for i := 0; i < NumLandmarks; i++ {
		pt := p.Points[i]
		normalized.Points[i] = Keypoint{
			X:          (pt.X - origin.X) / scale,
			Y:          (pt.Y - origin.Y) / scale,
			Z:          pt.Z / scale,
			Visibility: pt.Visibility,
		}
	}

	return normalized
}

// NormalizeSequence normalizes every pose against the first pose's hip center
// and torso length, so movement across the sequence is preserved.
func NormalizeSequence(seq []Pose) []Pose {
	if len(seq) == 0 {
		return nil
	}

	origin := seq[0].HipCenter()
	scale := seq[0].TorsoLength()

	out := make([]Pose, len(seq))
	for i := range seq {
		out[i] = *seq[i].normalizeTo(origin, scale)
	}
	return out
}
