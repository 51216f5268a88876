package capture

import (
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back frames for testing. With no frames set it produces
// blank frames of the advertised size.
type MockSource struct {
	frames  []*gocv.Mat
	info    VideoInfo
	limit   int
	index   int
	openErr error
	mu      sync.Mutex
	running bool
}

// NewMockSource creates a MockSource advertising info. Playback stops after
// info.FrameCount frames unless SetLimit says otherwise.
func NewMockSource(info VideoInfo, frames []*gocv.Mat) *MockSource {
	return &MockSource{
		frames: frames,
		info:   info,
		limit:  info.FrameCount,
	}
}

// Open starts playback from the first frame.
func (s *MockSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openErr != nil {
		return s.openErr
	}
	s.running = true
	s.index = 0
	return nil
}

// Close stops playback.
func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// ReadFrame returns a copy of the next frame, or io.EOF after the limit.
func (s *MockSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrSourceNotOpen
	}
	if s.index >= s.limit {
		return nil, io.EOF
	}

	var frame gocv.Mat
	if len(s.frames) > 0 {
		frame = s.frames[s.index%len(s.frames)].Clone()
	} else {
		frame = gocv.NewMatWithSize(s.info.Height, s.info.Width, gocv.MatTypeCV8UC3)
	}
	s.index++

	return &frame, nil
}

// Info returns the advertised metadata.
func (s *MockSource) Info() VideoInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// SetLimit changes how many frames are actually delivered, so a source can
// advertise more frames than it holds.
func (s *MockSource) SetLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = n
}

// SetOpenError makes Open fail with err.
func (s *MockSource) SetOpenError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

// Served returns how many frames have been delivered since Open.
func (s *MockSource) Served() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}
