// Package pipeline runs the fusion loop over a video: detection, ball
// tracking, windowed classification and timeline coalescing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/annotate"
	"github.com/ayusman/courtside/internal/capture"
	"github.com/ayusman/courtside/internal/detector"
	"github.com/ayusman/courtside/internal/live"
	"github.com/ayusman/courtside/internal/metrics"
	"github.com/ayusman/courtside/internal/smoothing"
	"github.com/ayusman/courtside/internal/timeline"
	"github.com/ayusman/courtside/internal/tracking"
	"github.com/ayusman/courtside/internal/window"
)

var (
	// ErrInvalidVideo is returned when the source cannot be opened or has
	// unusable metadata.
	ErrInvalidVideo = capture.ErrInvalidVideo
	// ErrVideoTooShort is returned when the video cannot fill a window.
	ErrVideoTooShort = errors.New("video too short")
	// ErrNoSubject is returned when no window was produced or no frame had a
	// pose.
	ErrNoSubject = errors.New("no subject found in video")
	// ErrNoClassifier is returned by Run when no classifier is configured.
	ErrNoClassifier = errors.New("no action classifier configured")
)

// logEvery is the frame interval of progress logging.
const logEvery = 30

// CourtDetector locates the hoop and zone bands in a frame. A nil geometry
// with a nil error means the court was not found.
type CourtDetector interface {
	Detect(frame *gocv.Mat) (*window.CourtGeometry, error)
}

// Collaborators are the models a Driver consults. Detector, Pose and Court
// may be nil; Classifier is required. Nil metric collaborators fall back to
// the built-in implementations.
type Collaborators struct {
	Detector   detector.ObjectDetector
	Pose       detector.PoseEstimator
	Classifier action.Classifier
	Court      CourtDetector
	Zones      action.ZoneClassifier
	Engine     metrics.Engine
	Heuristic  metrics.Evaluator
	Rules      metrics.Evaluator
	// Outcome judges made or missed for shooting runs. Nil uses
	// action.TrajectoryOutcomeClassifier.
	Outcome    action.OutcomeClassifier
}

// RunOptions are per-run settings.
type RunOptions struct {
	// Broadcaster receives annotated frames. Nil disables live output.
	Broadcaster *live.Broadcaster
	// Court is the starting geometry, used until a CourtDetector finds one.
	Court *window.CourtGeometry
	// OnSegment is called after every window with the raw segment and the
	// smoothed live label.
	OnSegment func(seg timeline.Segment, live action.Label)
}

// Result is the product of a run.
type Result struct {
	Timeline   []timeline.Segment `json:"timeline"`
	Summary    timeline.Summary   `json:"summary"`
	Ball       tracking.BallState `json:"ball"`
	Trajectory []tracking.Point   `json:"trajectory"`
	Info       capture.VideoInfo  `json:"video"`
	FPS        float64            `json:"fps"`

	Frames          int `json:"frames"`
	PoseFrames      int `json:"pose_frames"`
	Windows         int `json:"windows"`
	DegradedWindows int `json:"degraded_windows"`
	RawSegments     int `json:"raw_segments"`

	// Outcome is set when the main action is a shot and the ball's path
	// past a known hoop settles whether it went in.
	Outcome *action.ShotOutcome `json:"shot_outcome,omitempty"`

	LiveLabel action.Label `json:"live_label"`
	// Partial is set when the run was cancelled before the end of the video.
	Partial bool `json:"partial"`
}

// Driver runs analyses. It holds no per-run state, so one Driver may run
// several videos concurrently.
type Driver struct {
	config Config
	collab Collaborators
	logger zerolog.Logger
}

// NewDriver creates a Driver.
func NewDriver(config Config, collab Collaborators, logger zerolog.Logger) *Driver {
	return &Driver{config: config, collab: collab, logger: logger}
}

// Config returns the driver's settings.
func (d *Driver) Config() Config {
	return d.config
}

// run is the state owned by a single Run call.
type run struct {
	tracker   *tracking.BallTracker
	buffer    *window.Buffer
	finalizer *window.Finalizer
	smoother  *smoothing.Smoother
	coalescer *timeline.Coalescer
	court     *window.CourtGeometry

	res       Result
	liveConf  float64
	liveScore *float64
}

// Run analyses src until it is exhausted or ctx is cancelled. On
// cancellation the timeline built so far is returned with Partial set,
// together with ctx.Err(). ErrVideoTooShort and ErrNoSubject found at the
// end of a run are returned alongside the counters gathered.
func (d *Driver) Run(ctx context.Context, src capture.VideoSource, opts RunOptions) (*Result, error) {
	if d.collab.Classifier == nil {
		return nil, ErrNoClassifier
	}
	if err := d.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	if err := src.Open(); err != nil {
		if errors.Is(err, ErrInvalidVideo) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidVideo, err)
	}
	defer src.Close()

	info := src.Info()
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if info.FrameCount < d.config.minFrames() {
		return nil, fmt.Errorf("%w: %d frames, need %d", ErrVideoTooShort, info.FrameCount, d.config.minFrames())
	}

	fps := info.EffectiveFPS(d.config.DefaultFPS)
	r := d.newRun(fps, opts.Court)
	defer r.buffer.Close()
	r.res.Info = info

	started := time.Now()
	d.logger.Info().
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", fps).
		Int("frames", info.FrameCount).
		Msg("analysis started")

	courtEvery := max(logEvery, int(fps))

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			r.res.Partial = true
			d.finish(r)
			d.logger.Warn().Err(err).Int("frames", r.res.Frames).Msg("analysis cancelled")
			return &r.res, err
		}

		frame, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			d.logger.Warn().Err(err).Int("frame", i).Msg("frame read failed, ending stream")
			break
		}
		r.res.Frames++
		t := float64(i) / fps

		if d.collab.Court != nil && i%courtEvery == 0 {
			d.detectCourt(r, frame, i)
		}

		var dets []detector.Detection
		if d.collab.Detector != nil {
			dets, err = d.collab.Detector.Detect(frame)
			if err != nil {
				d.logger.Debug().Err(err).Int("frame", i).Msg("object detection failed")
				dets = nil
			}
		}
		persons := detector.SelectPersons(dets, d.config.PersonThreshold)
		ball := r.tracker.Update(detector.SelectBall(dets, d.config.BallThreshold))

		var pose *detector.Pose
		if d.collab.Pose != nil {
			pose, err = d.collab.Pose.Estimate(frame)
			if err != nil {
				d.logger.Debug().Err(err).Int("frame", i).Msg("pose estimation failed")
				pose = nil
			}
		}
		if pose != nil {
			r.res.PoseFrames++
		}

		if opts.Broadcaster != nil && d.config.BroadcastEvery > 0 && i%d.config.BroadcastEvery == 0 {
			d.broadcast(r, opts.Broadcaster, frame, i, persons, ball)
		}

		full := r.buffer.Push(window.FrameFeatures{
			Index:   i,
			Time:    t,
			Frame:   frame,
			Pose:    pose,
			Persons: persons,
		})
		if full {
			seg, out := r.finalizer.Finalize(ctx, r.buffer.Window(), t, ball, r.court)
			r.buffer.Advance()
			// A classifier interrupted by cancellation is not a degraded window.
			if out.Degraded && ctx.Err() != nil {
				continue
			}
			d.record(r, seg, out, i, opts)
		}

		if i%logEvery == 0 {
			d.logger.Debug().
				Int("frame", i).
				Str("ball", ball.Status.String()).
				Int("persons", len(persons)).
				Bool("pose", pose != nil).
				Msg("frame processed")
		}
	}

	d.finish(r)
	d.logger.Info().
		Int("frames", r.res.Frames).
		Int("windows", r.res.Windows).
		Int("degraded", r.res.DegradedWindows).
		Int("segments", len(r.res.Timeline)).
		Dur("elapsed", time.Since(started)).
		Msg("analysis finished")

	if r.res.Frames < d.config.WindowSize {
		return &r.res, fmt.Errorf("%w: decoded %d frames, need %d", ErrVideoTooShort, r.res.Frames, d.config.WindowSize)
	}
	if r.res.RawSegments == 0 || r.res.PoseFrames == 0 {
		return &r.res, ErrNoSubject
	}
	return &r.res, nil
}

func (d *Driver) newRun(fps float64, court *window.CourtGeometry) *run {
	c := d.config
	return &run{
		tracker: tracking.NewBallTracker(tracking.Config{
			MaxMissed:           c.MaxMissed,
			TrajectorySize:      c.TrajectorySize,
			PredictedConfidence: c.PredictedConfidence,
		}),
		buffer: window.NewBuffer(c.WindowSize, c.Stride),
		finalizer: window.NewFinalizer(window.Config{
			Size:          c.WindowSize,
			FPS:           fps,
			MinPoseFrames: c.MinPoseFrames,
			SmoothRadius:  c.PoseSmoothRadius,
		}, window.Collaborators{
			Classifier: d.collab.Classifier,
			Zones:      d.collab.Zones,
			Engine:     d.collab.Engine,
			Heuristic:  d.collab.Heuristic,
			Rules:      d.collab.Rules,
		}, d.logger),
		smoother:  smoothing.NewSmoother(c.SmoothingSize, smoothing.ParseTieBreak(c.TieBreak)),
		coalescer: timeline.NewCoalescer(timeline.Options{GapTolerance: c.GapTolerance, MinDuration: c.MinDuration}),
		court:     court,
		res:       Result{FPS: fps, LiveLabel: action.Idle},
	}
}

func (d *Driver) detectCourt(r *run, frame *gocv.Mat, i int) {
	geom, err := d.collab.Court.Detect(frame)
	if err != nil {
		d.logger.Debug().Err(err).Int("frame", i).Msg("court detection failed")
		return
	}
	if geom != nil {
		r.court = geom
	}
}

func (d *Driver) record(r *run, seg timeline.Segment, out window.Outcome, i int, opts RunOptions) {
	r.res.Windows++
	if out.Degraded {
		r.res.DegradedWindows++
		d.logger.Warn().Err(out.Err).Int("frame", i).Msg("window classification failed, segment degraded")
	}

	r.coalescer.Append(seg)
	r.res.LiveLabel = r.smoother.Push(seg.Label)
	r.liveConf = seg.Confidence
	r.liveScore = seg.Metrics.FormScore

	d.logger.Debug().
		Int("frame", i).
		Str("label", string(seg.Label)).
		Str("live", string(r.res.LiveLabel)).
		Float64("confidence", seg.Confidence).
		Int("pose_frames", out.ValidPoseFrames).
		Bool("zone_override", out.ZoneOverride).
		Msg("window finalized")

	if opts.OnSegment != nil {
		opts.OnSegment(seg.Clone(), r.res.LiveLabel)
	}
}

func (d *Driver) broadcast(r *run, b *live.Broadcaster, frame *gocv.Mat, i int, persons []detector.Detection, ball tracking.BallState) {
	annotated := frame.Clone()
	defer annotated.Close()

	annotate.Draw(&annotated, annotate.Overlay{
		Persons:    persons,
		Ball:       ball,
		Trajectory: r.tracker.Trajectory(),
		Label:      r.res.LiveLabel,
		Confidence: r.liveConf,
		FormScore:  r.liveScore,
	})
	jpeg, err := annotate.EncodeJPEG(annotated, d.config.JPEGQuality)
	if err != nil {
		d.logger.Debug().Err(err).Int("frame", i).Msg("live frame encoding failed")
		return
	}
	b.TrySend(i, jpeg)
}

// finish fills the result from the run's final state.
func (d *Driver) finish(r *run) {
	r.res.Timeline = r.coalescer.Timeline()
	r.res.RawSegments = r.coalescer.Len()
	r.res.Summary = timeline.Summarize(r.coalescer.Raw())
	r.res.Ball = r.tracker.State()
	r.res.Trajectory = r.tracker.Trajectory()
	r.res.Outcome = d.shotOutcome(r)
}

func (d *Driver) shotOutcome(r *run) *action.ShotOutcome {
	if !r.res.Summary.MainAction.IsShooting() || r.court == nil {
		return nil
	}
	classifier := d.collab.Outcome
	if classifier == nil {
		classifier = action.TrajectoryOutcomeClassifier{}
	}

	path := make([]action.Point, len(r.res.Trajectory))
	for i, p := range r.res.Trajectory {
		path[i] = action.Point{X: p.X, Y: p.Y}
	}
	out, ok := classifier.ClassifyOutcome(path, r.court.Hoop, r.court.Zones)
	if !ok {
		d.logger.Debug().Int("points", len(path)).Msg("shot outcome inconclusive")
		return nil
	}
	d.logger.Info().Str("outcome", out.Outcome).Float64("confidence", out.Confidence).Msg("shot outcome")
	return &out
}
