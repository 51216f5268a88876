// Package detector provides object detection and pose estimation interfaces
// used by the fusion pipeline.
package detector

import "gocv.io/x/gocv"

// COCO class indices reported by the object detector.
const (
	ClassPerson = 0
	ClassBall   = 32
)

// BBox is an axis-aligned box in pixel coordinates.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Center returns the midpoint of the box.
func (b BBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Width returns the box width.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Detection is a single object reported by an ObjectDetector.
type Detection struct {
	BBox       BBox    `json:"bbox"`
	Class      int     `json:"class"`
	Confidence float64 `json:"confidence"`
}

// ObjectDetector finds people and balls in a frame.
type ObjectDetector interface {
	// Detect analyzes a video frame and returns every detection it found.
	// Returns an empty slice if nothing was detected.
	Detect(frame *gocv.Mat) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// PoseEstimator extracts body keypoints from a frame.
type PoseEstimator interface {
	// Estimate returns the pose of the most prominent person, or nil if no
	// person was found.
	Estimate(frame *gocv.Mat) (*Pose, error)

	// Close releases any resources held by the estimator.
	Close() error
}

// Config holds configuration options for detection.
type Config struct {
	// BallThreshold is the minimum confidence for a ball detection (0.0-1.0).
	BallThreshold float64

	// PersonThreshold is the minimum confidence for a person detection (0.0-1.0).
	PersonThreshold float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		BallThreshold:   0.15,
		PersonThreshold: 0.5,
	}
}

// SelectBall returns the highest-confidence ball detection at or above the
// threshold, or nil.
func SelectBall(dets []Detection, threshold float64) *Detection {
	var best *Detection
	for i := range dets {
		d := dets[i]
		if d.Class != ClassBall || d.Confidence < threshold {
			continue
		}
		if best == nil || d.Confidence > best.Confidence {
			best = &d
		}
	}
	return best
}

// SelectPersons returns all person detections at or above the threshold.
func SelectPersons(dets []Detection, threshold float64) []Detection {
	var persons []Detection
	for _, d := range dets {
		if d.Class == ClassPerson && d.Confidence >= threshold {
			persons = append(persons, d)
		}
	}
	return persons
}
