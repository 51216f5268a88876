package capture

import (
	"fmt"
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// FileSource decodes a video file.
type FileSource struct {
	path    string
	capture *gocv.VideoCapture
	info    VideoInfo
	mu      sync.Mutex
	running bool
}

// NewFileSource creates a FileSource for the video at path. The file is not
// touched until Open.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the video path.
func (s *FileSource) Path() string { return s.path }

// Open opens the file and reads its metadata. A file that cannot be decoded
// or reports no frames yields ErrInvalidVideo.
func (s *FileSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	capture, err := gocv.VideoCaptureFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidVideo, s.path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: %s: cannot open", ErrInvalidVideo, s.path)
	}

	info := VideoInfo{
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        capture.Get(gocv.VideoCaptureFPS),
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
	}
	if err := info.Validate(); err != nil {
		capture.Close()
		return fmt.Errorf("%s: %w", s.path, err)
	}

	s.capture = capture
	s.info = info
	s.running = true
	return nil
}

// Close releases the decoder.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		s.running = false
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.running = false
	return err
}

// ReadFrame decodes the next frame, returning io.EOF at the end of the file.
func (s *FileSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, io.EOF
	}
	return &mat, nil
}

// Info returns the metadata read by Open.
func (s *FileSource) Info() VideoInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}
