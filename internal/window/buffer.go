// Package window buffers per-frame features into overlapping windows and turns
// each full window into a raw timeline segment.
package window

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/courtside/internal/detector"
)

// Window sizing defaults.
const (
	DefaultSize   = 16
	DefaultStride = 8
)

// FrameFeatures is everything the finalizer needs from one frame.
type FrameFeatures struct {
	Index   int
	Time    float64
	Frame   *gocv.Mat
	Pose    *detector.Pose
	Persons []detector.Detection
}

// Buffer holds the frames of the current window. Frames dropped by Advance or
// Close have their Mats closed. It is not safe for concurrent use.
type Buffer struct {
	size   int
	stride int
	frames []FrameFeatures
}

// NewBuffer creates a Buffer for windows of size frames advancing by stride.
// Out of range values fall back to the defaults.
func NewBuffer(size, stride int) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	if stride <= 0 || stride > size {
		stride = min(DefaultStride, size)
	}
	return &Buffer{
		size:   size,
		stride: stride,
		frames: make([]FrameFeatures, 0, size),
	}
}

// Size returns the window length.
func (b *Buffer) Size() int { return b.size }

// Stride returns how many frames Advance drops.
func (b *Buffer) Stride() int { return b.stride }

// Len returns the number of buffered frames.
func (b *Buffer) Len() int { return len(b.frames) }

// Push appends f and reports whether a full window is ready.
func (b *Buffer) Push(f FrameFeatures) bool {
	b.frames = append(b.frames, f)
	return len(b.frames) >= b.size
}

// Window returns the last Size frames. The slice aliases the buffer and is
// only valid until the next Advance.
func (b *Buffer) Window() []FrameFeatures {
	if len(b.frames) <= b.size {
		return b.frames
	}
	return b.frames[len(b.frames)-b.size:]
}

// Advance drops the oldest Stride frames.
func (b *Buffer) Advance() {
	n := min(b.stride, len(b.frames))
	for i := range b.frames[:n] {
		closeFrame(&b.frames[i])
	}
	rest := copy(b.frames, b.frames[n:])
	clear(b.frames[rest:])
	b.frames = b.frames[:rest]
}

// Close releases every buffered frame.
func (b *Buffer) Close() {
	for i := range b.frames {
		closeFrame(&b.frames[i])
	}
	clear(b.frames)
	b.frames = b.frames[:0]
}

func closeFrame(f *FrameFeatures) {
	if f.Frame != nil {
		f.Frame.Close()
		f.Frame = nil
	}
}
