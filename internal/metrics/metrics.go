// Package metrics computes per-window performance metrics and form-quality
// assessments from pose sequences.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics holds per-window performance values. Every field is optional; a nil
// field means the value could not be measured for that window.
type Metrics struct {
	JumpHeight       *float64 `json:"jump_height,omitempty" msgpack:"jump_height,omitempty"`
	MovementSpeed    *float64 `json:"movement_speed,omitempty" msgpack:"movement_speed,omitempty"`
	FormScore        *float64 `json:"form_score,omitempty" msgpack:"form_score,omitempty"`
	ReactionTime     *float64 `json:"reaction_time,omitempty" msgpack:"reaction_time,omitempty"`
	PoseStability    *float64 `json:"pose_stability,omitempty" msgpack:"pose_stability,omitempty"`
	EnergyEfficiency *float64 `json:"energy_efficiency,omitempty" msgpack:"energy_efficiency,omitempty"`

	ElbowAngle         *float64 `json:"elbow_angle,omitempty" msgpack:"elbow_angle,omitempty"`
	ReleaseAngle       *float64 `json:"release_angle,omitempty" msgpack:"release_angle,omitempty"`
	KneeAngle          *float64 `json:"knee_angle,omitempty" msgpack:"knee_angle,omitempty"`
	ShoulderAngle      *float64 `json:"shoulder_angle,omitempty" msgpack:"shoulder_angle,omitempty"`
	StabilityScore     *float64 `json:"stability_score,omitempty" msgpack:"stability_score,omitempty"`
	COMVariance        *float64 `json:"com_variance,omitempty" msgpack:"com_variance,omitempty"`
	COMVarianceX       *float64 `json:"com_variance_x,omitempty" msgpack:"com_variance_x,omitempty"`
	COMVarianceY       *float64 `json:"com_variance_y,omitempty" msgpack:"com_variance_y,omitempty"`
	SmoothnessScore    *float64 `json:"smoothness_score,omitempty" msgpack:"smoothness_score,omitempty"`
	FollowThroughScore *float64 `json:"follow_through_score,omitempty" msgpack:"follow_through_score,omitempty"`
	AngularVelocity    *float64 `json:"angular_velocity,omitempty" msgpack:"angular_velocity,omitempty"`
	DribbleHeight      *float64 `json:"dribble_height,omitempty" msgpack:"dribble_height,omitempty"`
	DribbleFrequency   *float64 `json:"dribble_frequency,omitempty" msgpack:"dribble_frequency,omitempty"`
	Consistency        *float64 `json:"consistency,omitempty" msgpack:"consistency,omitempty"`
	BaselineHeight     *float64 `json:"baseline_height,omitempty" msgpack:"baseline_height,omitempty"`
	DisplacementPixels *float64 `json:"displacement_pixels,omitempty" msgpack:"displacement_pixels,omitempty"`
	ReleaseFrame       *int     `json:"release_frame,omitempty" msgpack:"release_frame,omitempty"`
	PeakFrame          *int     `json:"peak_frame,omitempty" msgpack:"peak_frame,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// DefaultMetrics is used when a window has too little pose data to measure.
func DefaultMetrics() Metrics {
	return Metrics{
		JumpHeight:       Float(0),
		MovementSpeed:    Float(0),
		FormScore:        Float(0.5),
		ReactionTime:     Float(0),
		PoseStability:    Float(0.5),
		EnergyEfficiency: Float(0.5),
	}
}

// floatFields lists every float field of m for uniform merging.
func (m *Metrics) floatFields() []**float64 {
	return []**float64{
		&m.JumpHeight, &m.MovementSpeed, &m.FormScore, &m.ReactionTime,
		&m.PoseStability, &m.EnergyEfficiency,
		&m.ElbowAngle, &m.ReleaseAngle, &m.KneeAngle, &m.ShoulderAngle,
		&m.StabilityScore, &m.COMVariance, &m.COMVarianceX, &m.COMVarianceY,
		&m.SmoothnessScore, &m.FollowThroughScore, &m.AngularVelocity,
		&m.DribbleHeight, &m.DribbleFrequency, &m.Consistency,
		&m.BaselineHeight, &m.DisplacementPixels,
	}
}

func (m *Metrics) intFields() []**int {
	return []**int{&m.ReleaseFrame, &m.PeakFrame}
}

// Clone returns a deep copy of m.
func (m Metrics) Clone() Metrics {
	out := m
	for _, f := range out.floatFields() {
		if *f != nil {
			*f = Float(**f)
		}
	}
	for _, f := range out.intFields() {
		if *f != nil {
			*f = Int(**f)
		}
	}
	return out
}

// Merge averages a and b field by field. When only one side has a value it is
// passed through unchanged. Frame indices are averaged and rounded. Neither
// input is modified.
func Merge(a, b Metrics) Metrics {
	out := Metrics{}
	af, bf, of := a.floatFields(), b.floatFields(), out.floatFields()
	for i := range of {
		*of[i] = mergeFloat(*af[i], *bf[i])
	}
	ai, bi, oi := a.intFields(), b.intFields(), out.intFields()
	for i := range oi {
		*oi[i] = mergeInt(*ai[i], *bi[i])
	}
	return out
}

func mergeFloat(a, b *float64) *float64 {
	switch {
	case a != nil && b != nil:
		return Float((*a + *b) / 2)
	case a != nil:
		return Float(*a)
	case b != nil:
		return Float(*b)
	}
	return nil
}

func mergeInt(a, b *int) *int {
	switch {
	case a != nil && b != nil:
		return Int(int(math.Round(float64(*a+*b) / 2)))
	case a != nil:
		return Int(*a)
	case b != nil:
		return Int(*b)
	}
	return nil
}

// Mean averages each field over the entries that have it.
func Mean(all []Metrics) Metrics {
	out := Metrics{}
	if len(all) == 0 {
		return out
	}

	of := out.floatFields()
	values := make([]float64, 0, len(all))
	for i := range of {
		values = values[:0]
		for j := range all {
			if v := *all[j].floatFields()[i]; v != nil {
				values = append(values, *v)
			}
		}
		if len(values) > 0 {
			*of[i] = Float(stat.Mean(values, nil))
		}
	}

	oi := out.intFields()
	for i := range oi {
		values = values[:0]
		for j := range all {
			if v := *all[j].intFields()[i]; v != nil {
				values = append(values, float64(*v))
			}
		}
		if len(values) > 0 {
			*oi[i] = Int(int(math.Round(stat.Mean(values, nil))))
		}
	}

	return out
}
