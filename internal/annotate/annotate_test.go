package annotate

import (
	"bytes"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/detector"
	"github.com/ayusman/courtside/internal/metrics"
	"github.com/ayusman/courtside/internal/tracking"
	"github.com/ayusman/courtside/testdata"
)

func TestDraw_ChangesFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(testdata.FrameHeight, testdata.FrameWidth, gocv.MatTypeCV8UC3)
	defer frame.Close()

	tracker := tracking.NewBallTracker(tracking.DefaultConfig())
	tracker.Update(&detector.Detection{BBox: detector.BBox{X1: 100, Y1: 100, X2: 120, Y2: 120}, Class: detector.ClassBall, Confidence: 0.9})
	ball := tracker.Update(nil)

	Draw(&frame, Overlay{
		Persons:    []detector.Detection{{BBox: detector.BBox{X1: 10, Y1: 10, X2: 60, Y2: 200}, Confidence: 0.8}},
		Ball:       ball,
		Trajectory: tracker.Trajectory(),
		Label:      action.Dribbling,
		Confidence: 0.82,
		FormScore:  metrics.Float(0.7),
	})

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	if gocv.CountNonZero(gray) == 0 {
		t.Error("Draw() left the frame blank")
	}
}

func TestDraw_ClipsOutOfBounds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8UC3)
	defer frame.Close()

	// Must not panic for boxes partly or fully outside the frame.
	Draw(&frame, Overlay{
		Persons: []detector.Detection{
			{BBox: detector.BBox{X1: -20, Y1: -20, X2: 30, Y2: 30}},
			{BBox: detector.BBox{X1: 500, Y1: 500, X2: 600, Y2: 600}},
		},
	})
}

func TestDraw_NilFrame(t *testing.T) {
	Draw(nil, Overlay{Label: action.Idle})
}

func TestDashedLine_Endpoints(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(20, 40, gocv.MatTypeCV8UC1)
	defer frame.Close()

	dashedRect(&frame, image.Rect(2, 2, 30, 15), textColor, 1)
	if gocv.CountNonZero(frame) == 0 {
		t.Error("dashedRect() drew nothing")
	}
}

func TestEncodeJPEG(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := testdata.CourtFrame(testdata.BallPath(0))
	defer frame.Close()

	data, err := EncodeJPEG(frame, 0)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Error("EncodeJPEG() output is missing the JPEG SOI marker")
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := EncodeJPEG(empty, 80); err == nil {
		t.Error("EncodeJPEG() on empty Mat should fail")
	}
}
