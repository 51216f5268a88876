// Package app wires the analysis pipeline to its models, the results store
// and the live outputs.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/capture"
	"github.com/ayusman/courtside/internal/config"
	"github.com/ayusman/courtside/internal/detector"
	"github.com/ayusman/courtside/internal/live"
	"github.com/ayusman/courtside/internal/pipeline"
	"github.com/ayusman/courtside/internal/store"
	"github.com/ayusman/courtside/internal/window"
)

// cacheTimeout bounds timeline cache writes after a run.
const cacheTimeout = 2 * time.Second

// Deps are the long-lived services an App uses. Store is required; the rest
// are optional.
type Deps struct {
	Store  *store.Store
	Hub    *live.Hub
	Redis  *redis.Client
	Logger zerolog.Logger
}

// SourceOpener creates the video source for a path.
type SourceOpener func(path string) capture.VideoSource

// App runs analyses and records their results.
type App struct {
	driver  *pipeline.Driver
	court   *window.CourtGeometry
	store   *store.Store
	hub     *live.Hub
	redis   *redis.Client
	prefix  string
	cache   *live.TimelineCache
	open    SourceOpener
	logger  zerolog.Logger
	mu      sync.Mutex
	closers []func() error
}

// Report is the outcome of one analysis.
type Report struct {
	Analysis *store.Analysis  `json:"analysis"`
	Result   *pipeline.Result `json:"result,omitempty"`
}

// New creates an App from cfg. The vision and classifier sidecars are used
// when available; otherwise the colour ball detector and an idle classifier
// stand in, and a warning is logged.
func New(cfg config.Config, deps Deps) *App {
	collab, closers := buildCollaborators(cfg, deps.Logger)
	a := NewWithDriver(pipeline.NewDriver(cfg.Pipeline, collab, deps.Logger), deps)
	a.court = cfg.CourtGeometry()
	a.prefix = cfg.Redis.ChannelPrefix
	if deps.Redis != nil {
		a.cache = live.NewTimelineCache(deps.Redis, cfg.Redis.ChannelPrefix, cfg.Redis.TimelineTTL)
	}
	a.closers = closers
	return a
}

// NewWithDriver creates an App around an existing driver.
func NewWithDriver(driver *pipeline.Driver, deps Deps) *App {
	a := &App{
		driver: driver,
		store:  deps.Store,
		hub:    deps.Hub,
		redis:  deps.Redis,
		logger: deps.Logger,
		open: func(path string) capture.VideoSource {
			return capture.NewFileSource(path)
		},
	}
	if deps.Redis != nil {
		a.cache = live.NewTimelineCache(deps.Redis, "", 0)
	}
	return a
}

func buildCollaborators(cfg config.Config, logger zerolog.Logger) (pipeline.Collaborators, []func() error) {
	var collab pipeline.Collaborators
	var closers []func() error

	// Try the vision sidecar first, fall back to colour detection without pose.
	sc, err := detector.NewSidecar(detector.SidecarConfig{
		Script:      cfg.Detector.Script,
		Python:      cfg.Detector.Python,
		IdleTimeout: cfg.Detector.IdleTimeout,
		Logger:      logger,
	})
	if err == nil {
		collab.Detector = sc
		collab.Pose = sc
		closers = append(closers, sc.Close)
		logger.Info().Msg("using vision sidecar for detection and pose")
	} else {
		logger.Warn().Err(err).Msg("vision sidecar not available, using colour ball detector without pose")
		collab.Detector = detector.NewColorBallDetector(detector.OrangeBall)
	}

	if cfg.Classifier.Command != "" {
		if _, err := exec.LookPath(cfg.Classifier.Command); err == nil {
			collab.Classifier = action.NewSidecarClassifier(cfg.Classifier.Command, cfg.Classifier.Args, cfg.Classifier.Timeout)
			logger.Info().Str("command", cfg.Classifier.Command).Msg("using action classifier sidecar")
		} else {
			logger.Warn().Err(err).Str("command", cfg.Classifier.Command).Msg("action classifier not found")
		}
	}
	if collab.Classifier == nil {
		logger.Warn().Msg("no action classifier, every window will be labelled idle")
		clf := action.NewMockClassifier()
		clf.SetProbabilities(map[string]float64{string(action.Idle): 1})
		collab.Classifier = clf
	}

	return collab, closers
}

// SetSourceOpener replaces how video paths are opened.
func (a *App) SetSourceOpener(open SourceOpener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = open
}

// SetCourt sets the static court geometry used by later analyses.
func (a *App) SetCourt(court *window.CourtGeometry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.court = court
}

// Cache returns the timeline cache, or nil when redis is not configured.
func (a *App) Cache() *live.TimelineCache {
	return a.cache
}

// Analyze processes the video at path, stores the outcome and returns it.
// The returned Report is non-nil whenever the analysis was recorded, even
// when err reports that it failed or was cancelled.
func (a *App) Analyze(ctx context.Context, path string) (*Report, error) {
	a.mu.Lock()
	open, court := a.open, a.court
	a.mu.Unlock()

	rec := &store.Analysis{
		ID:        uuid.New().String(),
		VideoPath: path,
		Status:    store.StatusRunning,
	}
	if err := a.store.Analyses().Create(rec); err != nil {
		return nil, fmt.Errorf("failed to record analysis: %w", err)
	}
	logger := a.logger.With().Str("analysis", rec.ID).Logger()
	logger.Info().Str("video", path).Msg("analysis queued")

	var b *live.Broadcaster
	if sink := a.sink(rec.ID); sink != nil {
		cfg := live.DefaultBroadcasterConfig()
		cfg.Logger = logger
		b = live.NewBroadcaster(sink, cfg)
	}

	res, runErr := a.driver.Run(ctx, open(path), pipeline.RunOptions{Broadcaster: b, Court: court})
	if b != nil {
		b.Close()
		stats := b.Stats()
		logger.Debug().Int64("sent", stats.Sent).Int64("dropped", stats.Dropped).Int64("failed", stats.Failed).Msg("live frames delivered")
	}

	a.apply(rec, res, runErr)
	if res != nil && len(res.Timeline) > 0 {
		if err := a.store.Segments().Replace(rec.ID, res.Timeline); err != nil {
			return &Report{Analysis: rec, Result: res}, fmt.Errorf("failed to save timeline: %w", err)
		}
	}
	if err := a.store.Analyses().Update(rec); err != nil {
		return &Report{Analysis: rec, Result: res}, fmt.Errorf("failed to update analysis: %w", err)
	}
	if rec.Status != store.StatusFailed {
		a.cacheResult(ctx, rec.ID, res, logger)
	}

	logger.Info().Str("status", string(rec.Status)).Str("main_action", rec.MainAction).Msg("analysis recorded")
	return &Report{Analysis: rec, Result: res}, runErr
}

// apply copies the run outcome onto the analysis record.
func (a *App) apply(rec *store.Analysis, res *pipeline.Result, runErr error) {
	switch {
	case runErr == nil:
		rec.Status = store.StatusCompleted
	case res != nil && res.Partial:
		rec.Status = store.StatusPartial
		rec.Error = runErr.Error()
	default:
		rec.Status = store.StatusFailed
		rec.Error = runErr.Error()
	}

	if res == nil {
		return
	}
	rec.Frames = res.Frames
	rec.FPS = res.FPS
	rec.MainAction = string(res.Summary.MainAction)
	rec.Confidence = res.Summary.Confidence
	rec.Duration = res.Summary.Duration
}

func (a *App) cacheResult(ctx context.Context, id string, res *pipeline.Result, logger zerolog.Logger) {
	if a.cache == nil || res == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()

	err := a.cache.Put(ctx, live.CachedTimeline{
		AnalysisID: id,
		Segments:   res.Timeline,
		Summary:    res.Summary,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("timeline not cached")
	}
}

// sink assembles the live outputs for one analysis.
func (a *App) sink(id string) live.Sink {
	var sinks live.MultiSink
	if a.hub != nil {
		sinks = append(sinks, a.hub)
	}
	if a.redis != nil {
		sinks = append(sinks, live.NewRedisSink(a.redis, a.prefix, id))
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

// Close releases the sidecars started by New.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
