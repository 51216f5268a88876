package detector

import (
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// Colour segmentation constants, in OpenCV HSV units (hue 0-180).
const (
	// BallBlurSize is the kernel size for the pre-threshold Gaussian blur.
	BallBlurSize = 5
	// MinBallArea is the smallest blob, in pixels, reported as a ball.
	MinBallArea = 20.0
)

// HSVRange bounds a colour in HSV space.
type HSVRange struct {
	Low  [3]float64
	High [3]float64
}

// OrangeBall matches the usual orange leather ball under indoor light.
var OrangeBall = HSVRange{
	Low:  [3]float64{5, 120, 90},
	High: [3]float64{25, 255, 255},
}

// ColorBallDetector finds the ball by colour segmentation. It needs no model
// and stands in when the vision sidecar is unavailable. It never reports
// persons.
type ColorBallDetector struct {
	hsv     HSVRange
	minArea float64
	mu      sync.Mutex
}

// NewColorBallDetector creates a detector for the given colour range.
func NewColorBallDetector(hsv HSVRange) *ColorBallDetector {
	return &ColorBallDetector{hsv: hsv, minArea: MinBallArea}
}

// Detect returns at most one ball: the largest blob in range. Confidence is
// how closely the blob fills the circle inscribed in its bounding box.
//
// Steps:
// 1. Blur and convert to HSV
// 2. Threshold to the colour range
// 3. Take the largest external contour above the minimum area
func (d *ColorBallDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() || frame.Channels() < 3 {
		return []Detection{}, nil
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(*frame, &blurred, image.Point{X: BallBlurSize, Y: BallBlurSize}, 0, 0, gocv.BorderDefault)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(blurred, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	low := gocv.NewScalar(d.hsv.Low[0], d.hsv.Low[1], d.hsv.Low[2], 0)
	high := gocv.NewScalar(d.hsv.High[0], d.hsv.High[1], d.hsv.High[2], 0)
	gocv.InRangeWithScalar(hsv, low, high, &mask)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	bestArea := 0.0
	var bestRect image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < d.minArea || area <= bestArea {
			continue
		}
		bestArea = area
		bestRect = gocv.BoundingRect(c)
	}
	if bestArea == 0 {
		return []Detection{}, nil
	}

	circle := math.Pi / 4 * float64(bestRect.Dx()*bestRect.Dy())
	conf := 0.0
	if circle > 0 {
		conf = math.Min(1, bestArea/circle)
	}

	return []Detection{{
		BBox: BBox{
			X1: float64(bestRect.Min.X),
			Y1: float64(bestRect.Min.Y),
			X2: float64(bestRect.Max.X),
			Y2: float64(bestRect.Max.Y),
		},
		Class:      ClassBall,
		Confidence: conf,
	}}, nil
}

// Close is a no-op; the detector holds no native resources between calls.
func (d *ColorBallDetector) Close() error { return nil }
