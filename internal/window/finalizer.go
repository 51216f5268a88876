package window

import (
	"context"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/detector"
	"github.com/ayusman/courtside/internal/metrics"
	"github.com/ayusman/courtside/internal/timeline"
	"github.com/ayusman/courtside/internal/tracking"
)

// CourtGeometry locates the hoop and the zone bands around it.
type CourtGeometry struct {
	Hoop  action.Point
	Zones action.ZoneBoundaries
}

// Config holds finalizer settings.
type Config struct {
	// Size is the window length in frames, used to derive segment start times.
	Size int
	// FPS converts frame counts to seconds.
	FPS float64
	// MinPoseFrames is the fewest valid poses needed to compute metrics.
	MinPoseFrames int
	// SmoothRadius is the pose moving-average radius in frames.
	SmoothRadius int
}

// DefaultConfig returns the standard finalizer settings at 30 fps.
func DefaultConfig() Config {
	return Config{
		Size:          DefaultSize,
		FPS:           30,
		MinPoseFrames: 2,
		SmoothRadius:  1,
	}
}

// Collaborators are the external models the finalizer consults. Nil fields
// fall back to the built-in implementations, except Classifier which is
// required.
type Collaborators struct {
	Classifier action.Classifier
	Zones      action.ZoneClassifier
	Engine     metrics.Engine
	Heuristic  metrics.Evaluator
	Rules      metrics.Evaluator
}

// Outcome describes how a window was finalized.
type Outcome struct {
	// Degraded is set when classification failed and the segment is a
	// placeholder.
	Degraded bool
	// Err is the classifier error behind a degraded window.
	Err             error
	ValidPoseFrames int
	// ZoneOverride is set when the shot label was replaced by the court zone.
	ZoneOverride bool
}

// Finalizer turns a full window into a raw segment.
type Finalizer struct {
	config Config
	collab Collaborators
	logger zerolog.Logger
}

// NewFinalizer creates a Finalizer.
func NewFinalizer(config Config, collab Collaborators, logger zerolog.Logger) *Finalizer {
	if config.FPS <= 0 {
		config.FPS = DefaultConfig().FPS
	}
	if config.Size <= 0 {
		config.Size = DefaultSize
	}
	if config.MinPoseFrames <= 0 {
		config.MinPoseFrames = DefaultConfig().MinPoseFrames
	}
	if collab.Zones == nil {
		collab.Zones = action.DistanceZoneClassifier{}
	}
	if collab.Engine == nil {
		collab.Engine = metrics.DefaultEngine{}
	}
	if collab.Heuristic == nil {
		collab.Heuristic = metrics.HeuristicEvaluator{}
	}
	if collab.Rules == nil {
		collab.Rules = metrics.RuleEvaluator{}
	}
	return &Finalizer{config: config, collab: collab, logger: logger}
}

// Finalize classifies win and builds its segment. endTime is the timestamp of
// the frame that completed the window. A classifier failure yields a degraded
// idle segment rather than an error; its metrics are still computed from the
// poses but it carries no form quality.
func (f *Finalizer) Finalize(ctx context.Context, win []FrameFeatures, endTime float64, ball tracking.BallState, court *CourtGeometry) (timeline.Segment, Outcome) {
	seg := timeline.Segment{
		StartTime: max(0, endTime-float64(f.config.Size)/f.config.FPS),
		EndTime:   endTime,
	}
	var out Outcome

	poses := validPoses(win)
	out.ValidPoseFrames = len(poses)

	raw, err := f.collab.Classifier.Classify(ctx, frames(win))
	if err != nil {
		f.logger.Warn().Err(err).Float64("end_time", endTime).Msg("window classification failed")
		seg.Label = action.Idle
		out.Degraded = true
		out.Err = err
	} else {
		seg.Probabilities = action.MapModelProbabilities(raw)
		seg.Label, seg.Confidence = seg.Probabilities.Argmax()

		if label, ok := f.zoneLabel(seg.Label, ball, court); ok {
			seg.Label = label
			seg.Probabilities.Set(label, seg.Confidence)
			out.ZoneOverride = true
		}
	}

	if len(poses) < f.config.MinPoseFrames {
		seg.Metrics = metrics.DefaultMetrics()
		return seg, out
	}

	seq := metrics.SmoothSequence(detector.NormalizeSequence(poses), f.config.SmoothRadius)

	m, err := f.collab.Engine.Compute(seq, seg.Label, f.config.FPS)
	if err != nil {
		f.logger.Debug().Err(err).Msg("metrics unavailable, using defaults")
		m = metrics.DefaultMetrics()
	}
	seg.Metrics = m

	// Form quality needs a trusted label.
	if !out.Degraded {
		seg.FormQuality = f.assess(seq, seg.Label)
	}
	return seg, out
}

// zoneLabel returns the zone-derived shot label when label is a jump shot and
// the ball position is an actual detection on a known court.
func (f *Finalizer) zoneLabel(label action.Label, ball tracking.BallState, court *CourtGeometry) (action.Label, bool) {
	if !label.ZoneOverridable() || court == nil {
		return "", false
	}
	if ball.Status != tracking.StatusTracked || ball.Position == nil {
		return "", false
	}
	pos := action.Point{X: ball.Position.X, Y: ball.Position.Y}
	zone, ok := f.collab.Zones.ClassifyZone(pos, court.Hoop, court.Zones)
	if !ok {
		return "", false
	}
	return zone.ShotLabel()
}

func (f *Finalizer) assess(seq []detector.Pose, label action.Label) *metrics.Assessment {
	heur, err := f.collab.Heuristic.Evaluate(seq, label, f.config.FPS)
	if err != nil {
		f.logger.Debug().Err(err).Msg("heuristic evaluation failed")
		heur = nil
	}
	rules, err := f.collab.Rules.Evaluate(seq, label, f.config.FPS)
	if err != nil {
		f.logger.Debug().Err(err).Msg("rule evaluation failed")
		rules = nil
	}
	return metrics.Combine(heur, rules)
}

func validPoses(win []FrameFeatures) []detector.Pose {
	poses := make([]detector.Pose, 0, len(win))
	for _, ff := range win {
		if ff.Pose != nil {
			poses = append(poses, *ff.Pose)
		}
	}
	return poses
}

func frames(win []FrameFeatures) []*gocv.Mat {
	out := make([]*gocv.Mat, 0, len(win))
	for _, ff := range win {
		if ff.Frame != nil {
			out = append(out, ff.Frame)
		}
	}
	return out
}
