package pipeline

import (
	"errors"
	"fmt"

	"github.com/ayusman/courtside/internal/annotate"
	"github.com/ayusman/courtside/internal/smoothing"
	"github.com/ayusman/courtside/internal/timeline"
	"github.com/ayusman/courtside/internal/tracking"
	"github.com/ayusman/courtside/internal/window"
)

// Config holds the tunables of one analysis run.
type Config struct {
	WindowSize          int     `mapstructure:"window_size" json:"window_size"`
	Stride              int     `mapstructure:"stride" json:"stride"`
	MaxMissed           int     `mapstructure:"max_missed" json:"max_missed"`
	TrajectorySize      int     `mapstructure:"trajectory_size" json:"trajectory_size"`
	PredictedConfidence float64 `mapstructure:"predicted_confidence" json:"predicted_confidence"`
	SmoothingSize       int     `mapstructure:"smoothing_size" json:"smoothing_size"`
	TieBreak            string  `mapstructure:"tie_break" json:"tie_break"`
	GapTolerance        float64 `mapstructure:"gap_tolerance" json:"gap_tolerance"`
	MinDuration         float64 `mapstructure:"min_duration" json:"min_duration"`
	MinPoseFrames       int     `mapstructure:"min_pose_frames" json:"min_pose_frames"`
	PoseSmoothRadius    int     `mapstructure:"pose_smooth_radius" json:"pose_smooth_radius"`
	BallThreshold       float64 `mapstructure:"ball_threshold" json:"ball_threshold"`
	PersonThreshold     float64 `mapstructure:"person_threshold" json:"person_threshold"`
	BroadcastEvery      int     `mapstructure:"broadcast_every" json:"broadcast_every"`
	JPEGQuality         int     `mapstructure:"jpeg_quality" json:"jpeg_quality"`
	DefaultFPS          float64 `mapstructure:"default_fps" json:"default_fps"`
}

// DefaultConfig returns the standard run settings.
func DefaultConfig() Config {
	tc := tracking.DefaultConfig()
	wc := window.DefaultConfig()
	to := timeline.DefaultOptions()
	return Config{
		WindowSize:          window.DefaultSize,
		Stride:              window.DefaultStride,
		MaxMissed:           tc.MaxMissed,
		TrajectorySize:      tc.TrajectorySize,
		PredictedConfidence: tc.PredictedConfidence,
		SmoothingSize:       15,
		TieBreak:            smoothing.TieBreakMostRecent.String(),
		GapTolerance:        to.GapTolerance,
		MinDuration:         to.MinDuration,
		MinPoseFrames:       wc.MinPoseFrames,
		PoseSmoothRadius:    wc.SmoothRadius,
		BallThreshold:       0.15,
		PersonThreshold:     0.5,
		BroadcastEvery:      3,
		JPEGQuality:         annotate.DefaultJPEGQuality,
		DefaultFPS:          30,
	}
}

// Validate reports every setting that would make a run meaningless.
func (c Config) Validate() error {
	var errs []error
	if c.WindowSize < 2 {
		errs = append(errs, fmt.Errorf("window_size must be at least 2, got %d", c.WindowSize))
	}
	if c.Stride <= 0 || c.Stride > c.WindowSize {
		errs = append(errs, fmt.Errorf("stride must be in [1, window_size], got %d", c.Stride))
	}
	if c.GapTolerance < 0 {
		errs = append(errs, fmt.Errorf("gap_tolerance must not be negative, got %g", c.GapTolerance))
	}
	if c.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("min_duration must not be negative, got %g", c.MinDuration))
	}
	if c.MaxMissed < 0 {
		errs = append(errs, fmt.Errorf("max_missed must not be negative, got %d", c.MaxMissed))
	}
	if c.SmoothingSize < 1 {
		errs = append(errs, fmt.Errorf("smoothing_size must be positive, got %d", c.SmoothingSize))
	}
	switch c.TieBreak {
	case "", "most_recent", "first_seen", "current":
	default:
		errs = append(errs, fmt.Errorf("unknown tie_break %q", c.TieBreak))
	}
	return errors.Join(errs...)
}

// minFrames is the shortest video worth analysing.
func (c Config) minFrames() int {
	return max(8, c.WindowSize/2)
}
