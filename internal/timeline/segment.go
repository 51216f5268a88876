// Package timeline turns the stream of per-window segments into the final
// action timeline.
package timeline

import (
	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/metrics"
)

// Segment is a labeled span of the video. Raw segments come from one window;
// coalesced segments are built from one or more raw segments and share the
// same shape.
type Segment struct {
	StartTime     float64              `json:"start_time" msgpack:"start_time"`
	EndTime       float64              `json:"end_time" msgpack:"end_time"`
	Label         action.Label         `json:"label" msgpack:"label"`
	Confidence    float64              `json:"confidence" msgpack:"confidence"`
	Probabilities action.Probabilities `json:"probabilities" msgpack:"probabilities"`
	Metrics       metrics.Metrics      `json:"metrics" msgpack:"metrics"`
	FormQuality   *metrics.Assessment  `json:"form_quality,omitempty" msgpack:"form_quality,omitempty"`
}

// Duration returns EndTime - StartTime.
func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// Clone returns a deep copy of s.
func (s Segment) Clone() Segment {
	out := s
	out.Metrics = s.Metrics.Clone()
	out.FormQuality = s.FormQuality.Clone()
	return out
}

// Merge returns a new segment spanning a and b. Confidence, probabilities and
// metrics are averaged pairwise, with metrics present on only one side passed
// through. Form quality is combined and re-rated. Neither input is modified.
func Merge(a, b Segment) Segment {
	return Segment{
		StartTime:     a.StartTime,
		EndTime:       b.EndTime,
		Label:         a.Label,
		Confidence:    (a.Confidence + b.Confidence) / 2,
		Probabilities: a.Probabilities.Average(b.Probabilities),
		Metrics:       metrics.Merge(a.Metrics, b.Metrics),
		FormQuality:   metrics.Combine(a.FormQuality, b.FormQuality),
	}
}

// Builder accumulates segments into one. It owns a private copy of everything
// it has absorbed.
type Builder struct {
	seg Segment
}

// NewBuilder starts a builder from a copy of first.
func NewBuilder(first Segment) *Builder {
	return &Builder{seg: first.Clone()}
}

// Absorb folds next into the accumulated segment.
func (b *Builder) Absorb(next Segment) {
	b.seg = Merge(b.seg, next)
}

// Label returns the accumulated label.
func (b *Builder) Label() action.Label { return b.seg.Label }

// EndTime returns the accumulated end time.
func (b *Builder) EndTime() float64 { return b.seg.EndTime }

// Build returns a copy of the accumulated segment.
func (b *Builder) Build() Segment {
	return b.seg.Clone()
}
