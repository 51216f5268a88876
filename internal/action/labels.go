// Package action defines the closed action label set and the classifiers that
// produce probability distributions over it.
package action

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Label is one of the fixed action categories.
type Label string

// Action labels.
const (
	FreeThrow      Label = "free_throw"
	TwoPointShot   Label = "two_point_shot"
	ThreePointShot Label = "three_point_shot"
	Layup          Label = "layup"
	Dunk           Label = "dunk"
	Dribbling      Label = "dribbling"
	Passing        Label = "passing"
	Defense        Label = "defense"
	Running        Label = "running"
	Walking        Label = "walking"
	Blocking       Label = "blocking"
	Picking        Label = "picking"
	BallInHand     Label = "ball_in_hand"
	Idle           Label = "idle"
)

// NumLabels is the size of the label set.
const NumLabels = 14

// Labels lists every label in canonical order. Probabilities are indexed by
// position in this slice and argmax ties resolve to the earliest entry.
var Labels = [NumLabels]Label{
	FreeThrow, TwoPointShot, ThreePointShot, Layup, Dunk,
	Dribbling, Passing, Defense, Running, Walking,
	Blocking, Picking, BallInHand, Idle,
}

var labelIndex = func() map[Label]int {
	m := make(map[Label]int, NumLabels)
	for i, l := range Labels {
		m[l] = i
	}
	return m
}()

// Index returns the position of l in Labels.
func (l Label) Index() (int, bool) {
	i, ok := labelIndex[l]
	return i, ok
}

// Valid reports whether l is part of the label set.
func (l Label) Valid() bool {
	_, ok := labelIndex[l]
	return ok
}

// IsShot reports whether l is a jump shot or free throw.
func (l Label) IsShot() bool {
	switch l {
	case FreeThrow, TwoPointShot, ThreePointShot:
		return true
	}
	return false
}

// ZoneOverridable reports whether the court zone may replace l. Free throws
// keep their label wherever the ball is.
func (l Label) ZoneOverridable() bool {
	return l == TwoPointShot || l == ThreePointShot
}

// IsShooting reports whether l is any shooting motion, including finishes at the rim.
func (l Label) IsShooting() bool {
	return l.IsShot() || l == Layup || l == Dunk
}

// ParseLabel converts s into a Label.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown action label %q", s)
	}
	return l, nil
}

// Probabilities is a distribution over Labels.
type Probabilities [NumLabels]float64

// Get returns the probability of l, or 0 for an unknown label.
func (p Probabilities) Get(l Label) float64 {
	if i, ok := l.Index(); ok {
		return p[i]
	}
	return 0
}

// Set assigns the probability of l. Unknown labels are ignored.
func (p *Probabilities) Set(l Label, v float64) {
	if i, ok := l.Index(); ok {
		p[i] = v
	}
}

// Argmax returns the most probable label and its probability.
// Ties resolve to the earliest label in canonical order.
func (p Probabilities) Argmax() (Label, float64) {
	best := 0
	for i := 1; i < NumLabels; i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return Labels[best], p[best]
}

// Max returns the highest probability.
func (p Probabilities) Max() float64 {
	_, v := p.Argmax()
	return v
}

// Average returns the pairwise mean of p and q.
func (p Probabilities) Average(q Probabilities) Probabilities {
	var out Probabilities
	for i := range p {
		out[i] = (p[i] + q[i]) / 2
	}
	return out
}

// MarshalJSON encodes the distribution as an object keyed by label.
func (p Probabilities) MarshalJSON() ([]byte, error) {
	m := make(map[Label]float64, NumLabels)
	for i, l := range Labels {
		m[l] = p[i]
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by label. Unknown keys are ignored.
func (p *Probabilities) UnmarshalJSON(data []byte) error {
	var m map[Label]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*p = Probabilities{}
	for l, v := range m {
		p.Set(l, v)
	}
	return nil
}

// modelLabels maps class names emitted by the action model to labels.
var modelLabels = map[string]Label{
	"free_throw_shot": FreeThrow,
	"2point_shot":     TwoPointShot,
	"3point_shot":     ThreePointShot,
}

// MapModelProbabilities converts raw model output to a distribution over
// Labels. Known model aliases are translated, names already in the label set
// pass through and anything else is dropped.
func MapModelProbabilities(raw map[string]float64) Probabilities {
	var p Probabilities
	for name, v := range raw {
		if l, ok := modelLabels[name]; ok {
			p.Set(l, v)
			continue
		}
		p.Set(Label(name), v)
	}
	return p
}
