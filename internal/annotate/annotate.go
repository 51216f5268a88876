// Package annotate draws analysis overlays on frames for live viewing.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/detector"
	"github.com/ayusman/courtside/internal/tracking"
)

// DefaultJPEGQuality is the encoding quality of live frames.
const DefaultJPEGQuality = 80

var (
	personColor     = color.RGBA{R: 0, G: 200, B: 0, A: 0}
	ballColor       = color.RGBA{R: 255, G: 140, B: 0, A: 0}
	trajectoryColor = color.RGBA{R: 255, G: 220, B: 0, A: 0}
	bannerColor     = color.RGBA{R: 30, G: 30, B: 30, A: 0}
	textColor       = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Overlay is what gets drawn on a live frame.
type Overlay struct {
	Persons    []detector.Detection
	Ball       tracking.BallState
	Trajectory []tracking.Point
	Label      action.Label
	Confidence float64
	// FormScore is omitted from the banner when nil.
	FormScore *float64
}

// Draw renders o onto frame in place. Boxes are clipped to the frame and a
// predicted ball is drawn dashed.
func Draw(frame *gocv.Mat, o Overlay) {
	if frame == nil || frame.Empty() {
		return
	}
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())

	for _, p := range o.Persons {
		r := toRect(p.BBox).Intersect(bounds)
		if r.Empty() {
			continue
		}
		gocv.Rectangle(frame, r, personColor, 2)
	}

	for i := 1; i < len(o.Trajectory); i++ {
		gocv.Line(frame, toPoint(o.Trajectory[i-1]), toPoint(o.Trajectory[i]), trajectoryColor, 2)
	}

	if box, ok := o.Ball.Box(); ok {
		r := toRect(box).Intersect(bounds)
		if !r.Empty() {
			if o.Ball.Status == tracking.StatusPredicted {
				dashedRect(frame, r, ballColor, 2)
			} else {
				gocv.Rectangle(frame, r, ballColor, 2)
			}
		}
	}

	if o.Label != "" {
		drawBanner(frame, o)
	}
}

func drawBanner(frame *gocv.Mat, o Overlay) {
	text := fmt.Sprintf("%s %.0f%%", o.Label, o.Confidence*100)
	if o.FormScore != nil {
		text += fmt.Sprintf("  form %.2f", *o.FormScore)
	}

	size := gocv.GetTextSize(text, gocv.FontHersheyPlain, 1.2, 2)
	bg := image.Rect(0, 0, size.X+16, size.Y+16)
	gocv.Rectangle(frame, bg, bannerColor, -1)
	gocv.PutText(frame, text, image.Pt(8, size.Y+8), gocv.FontHersheyPlain, 1.2, textColor, 2)
}

// dashedRect draws r as dashes of 6px with 4px gaps.
func dashedRect(frame *gocv.Mat, r image.Rectangle, c color.RGBA, thickness int) {
	corners := []image.Point{r.Min, {r.Max.X, r.Min.Y}, r.Max, {r.Min.X, r.Max.Y}, r.Min}
	for i := 1; i < len(corners); i++ {
		dashedLine(frame, corners[i-1], corners[i], c, thickness)
	}
}

func dashedLine(frame *gocv.Mat, a, b image.Point, c color.RGBA, thickness int) {
	const dash, gap = 6, 4
	d := b.Sub(a)
	length := max(abs(d.X), abs(d.Y))
	for s := 0; s < length; s += dash + gap {
		e := min(s+dash, length)
		p1 := a.Add(d.Mul(s).Div(length))
		p2 := a.Add(d.Mul(e).Div(length))
		gocv.Line(frame, p1, p2, c, thickness)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func toRect(b detector.BBox) image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

func toPoint(p tracking.Point) image.Point {
	return image.Pt(int(p.X), int(p.Y))
}

// EncodeJPEG encodes frame at the given quality (1-100). Out of range values
// use DefaultJPEGQuality.
func EncodeJPEG(frame gocv.Mat, quality int) ([]byte, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("encode frame: empty image")
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}
