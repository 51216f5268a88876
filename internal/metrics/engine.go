package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/detector"
)

// Engine computes metrics for a pose sequence performing the given action.
type Engine interface {
	Compute(seq []detector.Pose, label action.Label, fps float64) (Metrics, error)
}

// torsoMeters converts normalized torso units to metres for an adult player.
const torsoMeters = 0.5

// reactionThreshold is the hip displacement, in torso units, that counts as
// the start of movement.
const reactionThreshold = 0.05

// DefaultEngine derives metrics from hip, wrist, elbow and knee trajectories.
// Poses are expected to be normalized with detector.NormalizeSequence.
type DefaultEngine struct{}

// Compute returns metrics for seq. Sequences shorter than two poses yield
// DefaultMetrics.
func (DefaultEngine) Compute(seq []detector.Pose, label action.Label, fps float64) (Metrics, error) {
	if len(seq) < 2 {
		return DefaultMetrics(), nil
	}
	if fps <= 0 {
		fps = 30
	}

	n := len(seq)
	hipX := make([]float64, n)
	hipY := make([]float64, n)
	for i := range seq {
		h := seq[i].HipCenter()
		hipX[i], hipY[i] = h.X, h.Y
	}

	steps := make([]float64, n-1)
	for i := 1; i < n; i++ {
		steps[i-1] = math.Hypot(hipX[i]-hipX[i-1], hipY[i]-hipY[i-1])
	}
	path := floats.Sum(steps)
	duration := float64(n-1) / fps

	m := Metrics{}

	// Y grows downward, so the jump peak is the smallest hip Y.
	baseline := hipY[0]
	peak := floats.MinIdx(hipY)
	m.BaselineHeight = Float(baseline)
	m.PeakFrame = Int(peak)
	m.JumpHeight = Float(math.Max(0, baseline-hipY[peak]) * torsoMeters)

	m.MovementSpeed = Float(path * torsoMeters / duration)

	varX, varY := stat.Variance(hipX, nil), stat.Variance(hipY, nil)
	m.COMVarianceX = Float(varX)
	m.COMVarianceY = Float(varY)
	m.COMVariance = Float(varX + varY)
	stability := clamp01(1 - 5*math.Sqrt(varX+varY))
	m.PoseStability = Float(stability)
	m.StabilityScore = Float(stability)

	smoothness := 1.0
	if len(steps) > 1 {
		accel := make([]float64, len(steps)-1)
		for i := 1; i < len(steps); i++ {
			accel[i-1] = math.Abs(steps[i]-steps[i-1]) * fps
		}
		smoothness = 1 / (1 + stat.Mean(accel, nil))
	}
	m.SmoothnessScore = Float(smoothness)

	reaction := duration
	for i := 1; i < n; i++ {
		if math.Hypot(hipX[i]-hipX[0], hipY[i]-hipY[0]) > reactionThreshold {
			reaction = float64(i) / fps
			break
		}
	}
	m.ReactionTime = Float(reaction)

	efficiency := 1.0
	if path > 0 {
		net := math.Hypot(hipX[n-1]-hipX[0], hipY[n-1]-hipY[0])
		efficiency = clamp01(net / path)
		if label.IsShooting() {
			// Vertical work is the point of a shot, so score the jump
			// against total path instead.
			efficiency = clamp01((baseline - hipY[peak]) * 2 / path)
		}
	}
	m.EnergyEfficiency = Float(efficiency)

	consistency := 1.0
	if mean := stat.Mean(steps, nil); mean > 0 && len(steps) > 1 {
		consistency = clamp01(1 - stat.StdDev(steps, nil)/mean)
	}
	m.Consistency = Float(consistency)

	switch {
	case label.IsShooting():
		shootingMetrics(seq, fps, &m)
	case label == action.Dribbling:
		dribblingMetrics(seq, duration, &m)
	}

	m.FormScore = Float(clamp01(0.5*stability + 0.5*smoothness))
	return m, nil
}

func shootingMetrics(seq []detector.Pose, fps float64, m *Metrics) {
	n := len(seq)
	wristY := make([]float64, n)
	knee := make([]float64, n)
	forearm := make([]float64, n)
	for i := range seq {
		p := &seq[i]
		wristY[i] = p.Points[detector.RightWrist].Y
		knee[i] = p.JointAngle(detector.RightHip, detector.RightKnee, detector.RightAnkle)
		d := p.At(detector.RightWrist).Sub(p.At(detector.RightElbow))
		forearm[i] = math.Atan2(-d.Y, d.X)
	}

	release := floats.MinIdx(wristY)
	rp := &seq[release]

	m.ReleaseFrame = Int(release)
	m.ElbowAngle = Float(rp.JointAngle(detector.RightShoulder, detector.RightElbow, detector.RightWrist))
	m.ShoulderAngle = Float(rp.JointAngle(detector.RightHip, detector.RightShoulder, detector.RightElbow))
	m.KneeAngle = Float(floats.Min(knee))
	m.ReleaseAngle = Float(forearm[release] * 180 / math.Pi)

	if n > 1 {
		deltas := make([]float64, n-1)
		for i := 1; i < n; i++ {
			deltas[i-1] = math.Abs(forearm[i]-forearm[i-1]) * fps
		}
		m.AngularVelocity = Float(stat.Mean(deltas, nil))
	}

	after := seq[release:]
	above := 0
	for i := range after {
		if after[i].Points[detector.RightWrist].Y < after[i].Points[detector.RightShoulder].Y {
			above++
		}
	}
	m.FollowThroughScore = Float(float64(above) / float64(len(after)))
}

func dribblingMetrics(seq []detector.Pose, duration float64, m *Metrics) {
	n := len(seq)
	rel := make([]float64, n)
	for i := range seq {
		rel[i] = seq[i].Points[detector.RightWrist].Y - seq[i].HipCenter().Y
	}
	m.DribbleHeight = Float(stat.Mean(rel, nil))

	turns := 0
	for i := 1; i < n-1; i++ {
		if (rel[i]-rel[i-1])*(rel[i+1]-rel[i]) < 0 {
			turns++
		}
	}
	if duration > 0 {
		m.DribbleFrequency = Float(float64(turns) / 2 / duration)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// SmoothSequence applies a centered moving average of the given radius to
// every landmark coordinate. The input is not modified.
func SmoothSequence(seq []detector.Pose, radius int) []detector.Pose {
	out := make([]detector.Pose, len(seq))
	copy(out, seq)
	if radius <= 0 || len(seq) < 3 {
		return out
	}

	for i := range seq {
		lo := max(0, i-radius)
		hi := min(len(seq)-1, i+radius)
		count := float64(hi - lo + 1)
		for j := 0; j < detector.NumLandmarks; j++ {
			var x, y, z float64
			for k := lo; k <= hi; k++ {
				x += seq[k].Points[j].X
				y += seq[k].Points[j].Y
				z += seq[k].Points[j].Z
			}
			out[i].Points[j].X = x / count
			out[i].Points[j].Y = y / count
			out[i].Points[j].Z = z / count
		}
	}
	return out
}
