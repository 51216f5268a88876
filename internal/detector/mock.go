package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the ObjectDetector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	detections []Detection
	sequence   [][]Detection
	calls      int
	err        error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections returned by every Detect call.
func (m *MockDetector) SetDetections(dets []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = dets
}

// SetSequence sets per-call detections. Call i returns sequence[i]; calls past
// the end of the sequence fall back to the fixed detections.
func (m *MockDetector) SetSequence(seq [][]Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = seq
	m.calls = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.calls
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	if call < len(m.sequence) {
		return m.sequence[call], nil
	}
	return m.detections, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// MockPoseEstimator is a test implementation of the PoseEstimator interface.
type MockPoseEstimator struct {
	mu       sync.Mutex
	pose     *Pose
	sequence []*Pose
	calls    int
	err      error
}

// NewMockPoseEstimator creates a new MockPoseEstimator instance.
func NewMockPoseEstimator() *MockPoseEstimator {
	return &MockPoseEstimator{}
}

// SetPose sets the pose returned by every Estimate call.
func (m *MockPoseEstimator) SetPose(p *Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = p
}

// SetSequence sets per-call poses; nil entries report no person.
func (m *MockPoseEstimator) SetSequence(seq []*Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = seq
	m.calls = 0
}

// SetError sets the error that will be returned by Estimate.
func (m *MockPoseEstimator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Estimate returns the pre-configured pose or error.
func (m *MockPoseEstimator) Estimate(frame *gocv.Mat) (*Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.calls
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	if call < len(m.sequence) {
		return m.sequence[call], nil
	}
	return m.pose, nil
}

// Close is a no-op for the mock estimator.
func (m *MockPoseEstimator) Close() error {
	return nil
}

// StandingPose returns a preset upright pose facing the camera, arms down.
func StandingPose() Pose {
	p := Pose{Score: 0.95}

	set := func(i int, x, y float64) {
		p.Points[i] = Keypoint{X: x, Y: y, Visibility: 0.99}
	}

	set(Nose, 0.50, 0.20)
	set(LeftShoulder, 0.45, 0.30)
	set(RightShoulder, 0.55, 0.30)
	set(LeftElbow, 0.43, 0.42)
	set(RightElbow, 0.57, 0.42)
	set(LeftWrist, 0.43, 0.52)
	set(RightWrist, 0.57, 0.52)
	set(LeftHip, 0.47, 0.55)
	set(RightHip, 0.53, 0.55)
	set(LeftKnee, 0.47, 0.72)
	set(RightKnee, 0.53, 0.72)
	set(LeftAnkle, 0.47, 0.90)
	set(RightAnkle, 0.53, 0.90)

	return p
}

// ShootingPose returns a preset pose at the set point of a jump shot: the
// shooting arm is raised with the elbow near 90 degrees and the knees bent.
func ShootingPose() Pose {
	p := StandingPose()

	set := func(i int, x, y float64) {
		p.Points[i] = Keypoint{X: x, Y: y, Visibility: 0.99}
	}

	set(RightElbow, 0.62, 0.30)
	set(RightWrist, 0.62, 0.12)
	set(LeftElbow, 0.50, 0.25)
	set(LeftWrist, 0.58, 0.14)
	set(LeftKnee, 0.42, 0.70)
	set(RightKnee, 0.58, 0.70)

	return p
}

// Shifted returns a copy of p moved by (dx, dy).
func (p Pose) Shifted(dx, dy float64) Pose {
	for i := range p.Points {
		p.Points[i].X += dx
		p.Points[i].Y += dy
	}
	return p
}
