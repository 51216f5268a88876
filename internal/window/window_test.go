package window

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/detector"
	"github.com/ayusman/courtside/internal/metrics"
	"github.com/ayusman/courtside/internal/tracking"
)

func features(n int, pose func(i int) *detector.Pose) []FrameFeatures {
	out := make([]FrameFeatures, n)
	for i := range out {
		out[i] = FrameFeatures{Index: i, Time: float64(i) / 30}
		if pose != nil {
			out[i].Pose = pose(i)
		}
	}
	return out
}

func standing(int) *detector.Pose {
	p := detector.StandingPose()
	return &p
}

func TestBuffer(t *testing.T) {
	b := NewBuffer(4, 2)

	for i := 0; i < 3; i++ {
		assert.False(t, b.Push(FrameFeatures{Index: i}))
	}
	assert.True(t, b.Push(FrameFeatures{Index: 3}))

	win := b.Window()
	require.Len(t, win, 4)
	assert.Equal(t, 0, win[0].Index)

	b.Advance()
	assert.Equal(t, 2, b.Len())
	assert.False(t, b.Push(FrameFeatures{Index: 4}))
	assert.True(t, b.Push(FrameFeatures{Index: 5}))
	assert.Equal(t, []int{2, 3, 4, 5}, indices(b.Window()))

	b.Close()
	assert.Zero(t, b.Len())
}

func TestBuffer_Defaults(t *testing.T) {
	b := NewBuffer(0, 0)
	assert.Equal(t, DefaultSize, b.Size())
	assert.Equal(t, DefaultStride, b.Stride())

	b = NewBuffer(4, 9)
	assert.Equal(t, 4, b.Stride())
}

func TestBuffer_ClosesFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	b := NewBuffer(2, 1)
	first := gocv.NewMat()
	second := gocv.NewMat()
	b.Push(FrameFeatures{Index: 0, Frame: &first})
	b.Push(FrameFeatures{Index: 1, Frame: &second})

	b.Advance()
	require.Equal(t, 1, b.Len())
	assert.NotNil(t, b.Window()[0].Frame)

	b.Close()
	assert.Zero(t, b.Len())
}

func indices(win []FrameFeatures) []int {
	out := make([]int, len(win))
	for i, f := range win {
		out[i] = f.Index
	}
	return out
}

func newFinalizer(c action.Classifier, collab Collaborators) *Finalizer {
	collab.Classifier = c
	return NewFinalizer(DefaultConfig(), collab, zerolog.Nop())
}

func TestFinalize_Classifies(t *testing.T) {
	clf := action.NewMockClassifier()
	clf.SetProbabilities(map[string]float64{"dribbling": 0.7, "passing": 0.2})
	f := newFinalizer(clf, Collaborators{})

	seg, out := f.Finalize(context.Background(), features(16, standing), 1.0, tracking.BallState{}, nil)

	assert.False(t, out.Degraded)
	assert.Equal(t, 16, out.ValidPoseFrames)
	assert.Equal(t, action.Dribbling, seg.Label)
	assert.InDelta(t, 0.7, seg.Confidence, 1e-9)
	assert.InDelta(t, 1.0-16.0/30, seg.StartTime, 1e-9)
	assert.InDelta(t, 1.0, seg.EndTime, 1e-9)
	assert.InDelta(t, 0.2, seg.Probabilities.Get(action.Passing), 1e-9)
	require.NotNil(t, seg.Metrics.StabilityScore)
	require.NotNil(t, seg.FormQuality)
	assert.Equal(t, 1, clf.Calls())
}

func TestFinalize_StartClampedAtZero(t *testing.T) {
	clf := action.NewMockClassifier()
	clf.SetProbabilities(map[string]float64{"idle": 1})
	f := newFinalizer(clf, Collaborators{})

	seg, _ := f.Finalize(context.Background(), features(16, nil), 0.2, tracking.BallState{}, nil)

	assert.Zero(t, seg.StartTime)
}

func TestFinalize_Degraded(t *testing.T) {
	clf := action.NewMockClassifier()
	clf.SetErrorAt(0, errors.New("classifier timeout after 30s"))
	f := newFinalizer(clf, Collaborators{})

	seg, out := f.Finalize(context.Background(), features(16, standing), 1.0, tracking.BallState{}, nil)

	assert.True(t, out.Degraded)
	assert.Error(t, out.Err)
	assert.Equal(t, action.Idle, seg.Label)
	assert.Zero(t, seg.Confidence)
	assert.Equal(t, action.Probabilities{}, seg.Probabilities)
	assert.NotEqual(t, metrics.DefaultMetrics(), seg.Metrics)
	require.NotNil(t, seg.Metrics.StabilityScore)
	assert.Nil(t, seg.FormQuality)
}

func TestFinalize_FewPoses(t *testing.T) {
	clf := action.NewMockClassifier()
	clf.SetProbabilities(map[string]float64{"dribbling": 0.9})
	f := newFinalizer(clf, Collaborators{})

	onlyFirst := func(i int) *detector.Pose {
		if i == 0 {
			return standing(i)
		}
		return nil
	}
	seg, out := f.Finalize(context.Background(), features(16, onlyFirst), 1.0, tracking.BallState{}, nil)

	assert.False(t, out.Degraded)
	assert.Equal(t, 1, out.ValidPoseFrames)
	assert.Equal(t, action.Dribbling, seg.Label)
	assert.Equal(t, metrics.DefaultMetrics(), seg.Metrics)
	assert.Nil(t, seg.FormQuality)
}

func TestFinalize_ZoneOverride(t *testing.T) {
	court := &CourtGeometry{Hoop: action.Point{X: 0, Y: 0}, Zones: action.DefaultZoneBoundaries()}
	// 400px at 50px/m is 8m from the hoop.
	tracked := tracking.BallState{Position: &tracking.Point{X: 400, Y: 0}, Status: tracking.StatusTracked}
	predicted := tracked
	predicted.Status = tracking.StatusPredicted
	// 50px is 1m, inside the paint.
	paint := tracking.BallState{Position: &tracking.Point{X: 50, Y: 0}, Status: tracking.StatusTracked}
	// 225px is 4.5m, on the free-throw line.
	line := tracking.BallState{Position: &tracking.Point{X: 225, Y: 0}, Status: tracking.StatusTracked}

	tests := []struct {
		name     string
		probs    map[string]float64
		ball     tracking.BallState
		court    *CourtGeometry
		want     action.Label
		override bool
	}{
		{"tracked shot in three-point zone", map[string]float64{"2point_shot": 0.6}, tracked, court, action.ThreePointShot, true},
		{"predicted ball keeps model label", map[string]float64{"2point_shot": 0.6}, predicted, court, action.TwoPointShot, false},
		{"no court keeps model label", map[string]float64{"2point_shot": 0.6}, tracked, nil, action.TwoPointShot, false},
		{"non-shot keeps model label", map[string]float64{"layup": 0.6}, tracked, court, action.Layup, false},
		{"free throw keeps model label", map[string]float64{"free_throw_shot": 0.6}, tracked, court, action.FreeThrow, false},
		{"paint keeps model label", map[string]float64{"3point_shot": 0.6}, paint, court, action.ThreePointShot, false},
		{"jump shot from the free-throw line", map[string]float64{"2point_shot": 0.6}, line, court, action.FreeThrow, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf := action.NewMockClassifier()
			clf.SetProbabilities(tt.probs)
			f := newFinalizer(clf, Collaborators{})

			seg, out := f.Finalize(context.Background(), features(16, nil), 1.0, tt.ball, tt.court)

			assert.Equal(t, tt.want, seg.Label)
			assert.Equal(t, tt.override, out.ZoneOverride)
			assert.InDelta(t, 0.6, seg.Confidence, 1e-9)
			assert.InDelta(t, 0.6, seg.Probabilities.Get(tt.want), 1e-9)
		})
	}
}

func TestFinalize_OutOfZoneKeepsLabel(t *testing.T) {
	clf := action.NewMockClassifier()
	clf.SetProbabilities(map[string]float64{"3point_shot": 0.8})
	f := newFinalizer(clf, Collaborators{})
	court := &CourtGeometry{Zones: action.DefaultZoneBoundaries()}
	ball := tracking.BallState{Position: &tracking.Point{X: 5000}, Status: tracking.StatusTracked}

	seg, out := f.Finalize(context.Background(), features(16, nil), 1.0, ball, court)

	assert.Equal(t, action.ThreePointShot, seg.Label)
	assert.False(t, out.ZoneOverride)
}

type failingEngine struct{}

func (failingEngine) Compute([]detector.Pose, action.Label, float64) (metrics.Metrics, error) {
	return metrics.Metrics{}, errors.New("engine failed")
}

type failingEvaluator struct{}

func (failingEvaluator) Evaluate([]detector.Pose, action.Label, float64) (*metrics.Assessment, error) {
	return nil, errors.New("evaluator failed")
}

type fixedEvaluator struct{ a *metrics.Assessment }

func (e fixedEvaluator) Evaluate([]detector.Pose, action.Label, float64) (*metrics.Assessment, error) {
	return e.a, nil
}

func TestFinalize_CollaboratorErrors(t *testing.T) {
	clf := action.NewMockClassifier()
	clf.SetProbabilities(map[string]float64{"dribbling": 0.9})
	f := newFinalizer(clf, Collaborators{
		Engine:    failingEngine{},
		Heuristic: failingEvaluator{},
		Rules:     failingEvaluator{},
	})

	seg, out := f.Finalize(context.Background(), features(16, standing), 1.0, tracking.BallState{}, nil)

	assert.False(t, out.Degraded)
	assert.Equal(t, metrics.DefaultMetrics(), seg.Metrics)
	assert.Nil(t, seg.FormQuality)
}

func TestFinalize_CombinesAssessments(t *testing.T) {
	clf := action.NewMockClassifier()
	clf.SetProbabilities(map[string]float64{"dribbling": 0.9})
	heur := &metrics.Assessment{
		OverallScore: 1.0,
		Issues:       []metrics.Issue{{IssueType: "dribble_height", Severity: metrics.SeverityModerate}},
		Strengths:    []string{"low dribble"},
	}
	rules := &metrics.Assessment{
		OverallScore: 0.6,
		Issues: []metrics.Issue{
			{IssueType: "dribble_height", Severity: metrics.SeverityMinor},
			{IssueType: "head_position", Severity: metrics.SeverityMinor},
		},
	}
	f := newFinalizer(clf, Collaborators{
		Heuristic: fixedEvaluator{heur},
		Rules:     fixedEvaluator{rules},
	})

	seg, _ := f.Finalize(context.Background(), features(16, standing), 1.0, tracking.BallState{}, nil)

	require.NotNil(t, seg.FormQuality)
	assert.InDelta(t, 0.8, seg.FormQuality.OverallScore, 1e-9)
	assert.Equal(t, metrics.RatingGood, seg.FormQuality.QualityRating)
	require.Len(t, seg.FormQuality.Issues, 2)
	assert.Equal(t, metrics.SeverityModerate, seg.FormQuality.Issues[0].Severity)
	assert.Equal(t, []string{"low dribble"}, seg.FormQuality.Strengths)
}

func TestFinalize_RulesOnly(t *testing.T) {
	clf := action.NewMockClassifier()
	clf.SetProbabilities(map[string]float64{"dribbling": 0.9})
	rules := metrics.FromRuleIssues([]metrics.Issue{{IssueType: "com_stability", Severity: metrics.SeverityModerate}})
	f := newFinalizer(clf, Collaborators{
		Heuristic: fixedEvaluator{nil},
		Rules:     fixedEvaluator{rules},
	})

	seg, _ := f.Finalize(context.Background(), features(16, standing), 1.0, tracking.BallState{}, nil)

	require.NotNil(t, seg.FormQuality)
	assert.InDelta(t, 0.8, seg.FormQuality.OverallScore, 1e-9)
}
