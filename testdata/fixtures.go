// Package testdata generates synthetic court footage for tests.
package testdata

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Frame geometry used by the generated footage.
const (
	FrameWidth  = 320
	FrameHeight = 240
	BallRadius  = 10
)

var (
	floorColor = gocv.NewScalar(120, 100, 90, 0)
	ballColor  = color.RGBA{R: 255, G: 128, B: 0, A: 255}
)

// CourtFrame renders a plain floor with a ball centred on ball.
func CourtFrame(ball image.Point) gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(floorColor, FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	gocv.Circle(&mat, ball, BallRadius, ballColor, -1)
	return mat
}

// BallPath returns where BallSequence draws the ball in frame i: a straight
// line moving right at 4px per frame.
func BallPath(i int) image.Point {
	return image.Point{X: 20 + 4*i, Y: FrameHeight / 2}
}

// BallSequence renders n frames following BallPath.
func BallSequence(n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		f := CourtFrame(BallPath(i))
		frames[i] = &f
	}
	return frames
}

// CloseAll closes every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}

// WriteVideo encodes frames to an MJPG file at path.
func WriteVideo(path string, frames []*gocv.Mat, fps float64) error {
	if len(frames) == 0 {
		return fmt.Errorf("write video %s: no frames", path)
	}

	w, err := gocv.VideoWriterFile(path, "MJPG", fps, frames[0].Cols(), frames[0].Rows(), true)
	if err != nil {
		return fmt.Errorf("open writer %s: %w", path, err)
	}
	defer w.Close()

	for i, f := range frames {
		if err := w.Write(*f); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return nil
}
