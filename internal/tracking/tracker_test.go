package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/courtside/internal/detector"
)

func ballAt(x, y float64) *detector.Detection {
	return &detector.Detection{
		Class:      detector.ClassBall,
		Confidence: 0.8,
		BBox:       detector.BBox{X1: x - 5, Y1: y - 5, X2: x + 5, Y2: y + 5},
	}
}

func TestBallTracker_Lifecycle(t *testing.T) {
	tr := NewBallTracker(DefaultConfig())

	assert.Equal(t, StatusEmpty, tr.State().Status)

	var states []BallState
	for i := 0; i < 3; i++ {
		states = append(states, tr.Update(ballAt(float64(100+10*i), 200)))
	}
	for i := 3; i <= 8; i++ {
		states = append(states, tr.Update(nil))
	}

	assert.Equal(t, StatusTracked, states[2].Status)
	for i := 3; i <= 7; i++ {
		assert.Equal(t, StatusPredicted, states[i].Status, "frame %d", i)
		assert.Equal(t, i-2, states[i].MissingCount, "frame %d", i)
	}
	assert.Equal(t, StatusLost, states[8].Status)
	assert.Nil(t, states[8].Position)
	assert.Nil(t, states[8].Velocity)
	assert.Zero(t, states[8].MissingCount)
}

func TestBallTracker_DeadReckoning(t *testing.T) {
	tr := NewBallTracker(DefaultConfig())

	tr.Update(ballAt(100, 200))
	s := tr.Update(ballAt(110, 195))
	require.NotNil(t, s.Velocity)
	assert.Equal(t, Point{X: 10, Y: -5}, *s.Velocity)
	assert.InDelta(t, 0.8, s.Confidence, 1e-9)

	s = tr.Update(nil)
	require.NotNil(t, s.Position)
	assert.Equal(t, Point{X: 120, Y: 190}, *s.Position)
	assert.Equal(t, StatusPredicted, s.Status)
	assert.InDelta(t, 0.3, s.Confidence, 1e-9)

	s = tr.Update(nil)
	assert.Equal(t, Point{X: 130, Y: 185}, *s.Position)

	box, ok := s.Box()
	require.True(t, ok)
	assert.InDelta(t, 10, box.Width(), 1e-9)
}

func TestBallTracker_FirstDetectionHasNoVelocity(t *testing.T) {
	tr := NewBallTracker(DefaultConfig())

	s := tr.Update(ballAt(50, 50))
	assert.Nil(t, s.Velocity)

	// Without velocity the position is held.
	s = tr.Update(nil)
	require.NotNil(t, s.Position)
	assert.Equal(t, Point{X: 50, Y: 50}, *s.Position)
	assert.Equal(t, StatusPredicted, s.Status)
}

func TestBallTracker_NoPriorPositionIsLost(t *testing.T) {
	tr := NewBallTracker(DefaultConfig())

	s := tr.Update(nil)
	assert.Equal(t, StatusLost, s.Status)
}

func TestBallTracker_RecoveryForgetsVelocity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMissed = 1
	tr := NewBallTracker(cfg)

	tr.Update(ballAt(0, 0))
	tr.Update(ballAt(10, 0))
	tr.Update(nil)
	s := tr.Update(nil)
	require.Equal(t, StatusLost, s.Status)

	s = tr.Update(ballAt(300, 300))
	assert.Equal(t, StatusTracked, s.Status)
	assert.Nil(t, s.Velocity)
	assert.Zero(t, s.MissingCount)
}

func TestBallTracker_RecoveryWithinWindow(t *testing.T) {
	tr := NewBallTracker(DefaultConfig())

	tr.Update(ballAt(0, 0))
	tr.Update(nil)
	tr.Update(nil)
	s := tr.Update(ballAt(30, 0))

	assert.Equal(t, StatusTracked, s.Status)
	assert.Zero(t, s.MissingCount)
	require.NotNil(t, s.Velocity)
	assert.Equal(t, Point{X: 30, Y: 0}, *s.Velocity)
}

func TestBallTracker_StateIsACopy(t *testing.T) {
	tr := NewBallTracker(DefaultConfig())
	tr.Update(ballAt(1, 1))

	s := tr.State()
	s.Position.X = 999

	assert.Equal(t, 1.0, tr.State().Position.X)
}

func TestBallTracker_TrajectoryOnlyHoldsDetections(t *testing.T) {
	tr := NewBallTracker(DefaultConfig())

	tr.Update(ballAt(1, 1))
	tr.Update(nil)
	tr.Update(ballAt(3, 3))

	assert.Equal(t, []Point{{1, 1}, {3, 3}}, tr.Trajectory())
}

func TestTrajectoryRing(t *testing.T) {
	r := NewTrajectoryRing(3)

	_, ok := r.Last()
	assert.False(t, ok)

	for i := 1; i <= 5; i++ {
		r.Push(Point{X: float64(i)})
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Equal(t, []Point{{X: 3}, {X: 4}, {X: 5}}, r.Positions())

	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, Point{X: 5}, last)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "predicted", StatusPredicted.String())
	text, err := StatusLost.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "lost", string(text))
}
