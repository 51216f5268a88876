package detector_test

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/courtside/internal/detector"
	"github.com/ayusman/courtside/testdata"
)

func TestColorBallDetector_FindsBall(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	d := detector.NewColorBallDetector(detector.OrangeBall)
	defer d.Close()

	center := testdata.BallPath(10)
	frame := testdata.CourtFrame(center)
	defer frame.Close()

	dets, err := d.Detect(&frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("Detect() returned %d detections, want 1", len(dets))
	}

	ball := dets[0]
	if ball.Class != detector.ClassBall {
		t.Errorf("Class = %d, want %d", ball.Class, detector.ClassBall)
	}
	cx, cy := ball.BBox.Center()
	if d := cx - float64(center.X); d > 2 || d < -2 {
		t.Errorf("center x = %f, want about %d", cx, center.X)
	}
	if d := cy - float64(center.Y); d > 2 || d < -2 {
		t.Errorf("center y = %f, want about %d", cy, center.Y)
	}
	if ball.Confidence < 0.5 {
		t.Errorf("Confidence = %f, want >= 0.5 for a filled circle", ball.Confidence)
	}
	if detector.SelectBall(dets, detector.DefaultConfig().BallThreshold) == nil {
		t.Error("SelectBall() rejected the colour detection")
	}
}

func TestColorBallDetector_EmptyFloor(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	d := detector.NewColorBallDetector(detector.OrangeBall)

	frame := gocv.NewMatWithSize(testdata.FrameHeight, testdata.FrameWidth, gocv.MatTypeCV8UC3)
	defer frame.Close()

	dets, err := d.Detect(&frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("Detect() on black frame returned %d detections", len(dets))
	}
}

func TestColorBallDetector_NilFrame(t *testing.T) {
	d := detector.NewColorBallDetector(detector.OrangeBall)

	dets, err := d.Detect(nil)
	if err != nil || len(dets) != 0 {
		t.Errorf("Detect(nil) = %v, %v; want empty, nil", dets, err)
	}
}
