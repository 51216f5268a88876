package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// ErrSidecarNotFound is returned when the vision service script cannot be located.
var ErrSidecarNotFound = errors.New("vision_service.py not found")

// Request opcodes understood by the vision service.
const (
	opDetect byte = 'D'
	opPose   byte = 'P'
)

// SidecarConfig configures the Python vision subprocess.
type SidecarConfig struct {
	// Script is the path to vision_service.py. Empty means search the usual locations.
	Script string
	// Python is the interpreter. Empty means a venv python if found, else python3.
	Python string
	// IdleTimeout shuts the process down after this long without requests.
	IdleTimeout time.Duration
	Logger      zerolog.Logger
}

// Sidecar implements ObjectDetector and PoseEstimator with a single Python
// subprocess running YOLO and MediaPipe Pose.
type Sidecar struct {
	config    SidecarConfig
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewSidecar creates a new vision sidecar.
// The Python process is started lazily on first use.
func NewSidecar(config SidecarConfig) (*Sidecar, error) {
	script := config.Script
	if script == "" {
		script = findVisionScript()
	}
	if script == "" {
		return nil, ErrSidecarNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSidecarNotFound, script)
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 30 * time.Second
	}

	return &Sidecar{
		config: config,
		script: script,
	}, nil
}

// Detect sends the frame for object detection.
func (s *Sidecar) Detect(frame *gocv.Mat) ([]Detection, error) {
	var response struct {
		Detections []Detection `json:"detections"`
	}
	if err := s.roundTrip(opDetect, frame, &response); err != nil {
		return nil, err
	}
	return response.Detections, nil
}

// Estimate sends the frame for pose estimation.
func (s *Sidecar) Estimate(frame *gocv.Mat) (*Pose, error) {
	var response struct {
		Pose *jsonPose `json:"pose"`
	}
	if err := s.roundTrip(opPose, frame, &response); err != nil {
		return nil, err
	}
	if response.Pose == nil {
		return nil, nil
	}
	return response.Pose.toPose(), nil
}

// Close shuts down the Python process.
func (s *Sidecar) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown()
}

func (s *Sidecar) roundTrip(op byte, frame *gocv.Mat, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureStarted(); err != nil {
		return err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// opcode (1 byte) + length (4 bytes big-endian) + data
	header := make([]byte, 5)
	header[0] = op
	binary.BigEndian.PutUint32(header[1:], uint32(len(data)))

	if _, err := s.stdin.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := s.stdin.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}

	line, err := s.stdout.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal([]byte(line), out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	s.resetIdleTimer()
	return nil
}

func (s *Sidecar) ensureStarted() error {
	if s.started {
		return nil
	}

	python := s.config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	s.cmd = exec.Command(python, s.script)

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	s.cmd.Stderr = os.Stderr

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start vision service: %w", err)
	}

	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	s.started = true

	s.config.Logger.Info().Str("script", s.script).Str("python", python).Msg("vision sidecar started")
	return nil
}

func (s *Sidecar) shutdown() error {
	if !s.started {
		return nil
	}

	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}

	if s.stdin != nil {
		s.stdin.Close()
	}

	err := s.cmd.Wait()
	s.started = false
	s.cmd = nil
	s.stdin = nil
	s.stdout = nil

	s.config.Logger.Info().Msg("vision sidecar stopped")
	return err
}

func (s *Sidecar) resetIdleTimer() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.config.IdleTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.shutdown()
	})
}

func findVisionScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/vision_service.py",
		"../scripts/vision_service.py",
		filepath.Join(execDir, "scripts/vision_service.py"),
		filepath.Join(os.Getenv("HOME"), ".courtside/scripts/vision_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".courtside/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonPose represents the pose JSON structure from the Python service.
type jsonPose struct {
	Points []Keypoint `json:"points"`
	Score  float64    `json:"score"`
}

func (j jsonPose) toPose() *Pose {
	p := &Pose{Score: j.Score}
	for i := 0; i < NumLandmarks && i < len(j.Points); i++ {
		p.Points[i] = j.Points[i]
	}
	return p
}
