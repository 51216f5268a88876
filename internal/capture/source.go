// Package capture reads frames from video files using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrInvalidVideo is returned when a source cannot be opened or reports
// unusable dimensions.
var ErrInvalidVideo = errors.New("invalid video")

// ErrSourceNotOpen is returned when reading from a source that is not open.
var ErrSourceNotOpen = errors.New("video source is not open")

// VideoInfo is the container metadata of a video.
type VideoInfo struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
}

// Validate checks that the metadata describes a decodable video.
func (i VideoInfo) Validate() error {
	if i.Width <= 0 || i.Height <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", ErrInvalidVideo, i.Width, i.Height)
	}
	if i.FrameCount <= 0 {
		return fmt.Errorf("%w: no frames", ErrInvalidVideo)
	}
	return nil
}

// EffectiveFPS returns FPS, or fallback when the container does not report a
// usable rate.
func (i VideoInfo) EffectiveFPS(fallback float64) float64 {
	if i.FPS > 0 {
		return i.FPS
	}
	return fallback
}

// VideoSource is a finite stream of frames. ReadFrame returns io.EOF once the
// stream is exhausted. The caller owns and must close every returned Mat.
type VideoSource interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	Info() VideoInfo
}
