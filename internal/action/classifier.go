package action

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Classifier assigns a probability distribution to a window of frames.
// Keys in the returned map are model class names; see MapModelProbabilities.
type Classifier interface {
	Classify(ctx context.Context, frames []*gocv.Mat) (map[string]float64, error)
}

// classifyRequest is written to the classifier process on stdin.
type classifyRequest struct {
	Frames [][]byte `json:"frames"`
}

// classifyResponse is read from the classifier process stdout.
type classifyResponse struct {
	Probabilities map[string]float64 `json:"probabilities"`
	Error         string             `json:"error,omitempty"`
}

// SidecarClassifier runs an external classifier command once per window.
// Frames are sent as JPEG bytes in a JSON request on stdin and the
// distribution is parsed from stdout.
type SidecarClassifier struct {
	command string
	args    []string
	timeout time.Duration
}

// NewSidecarClassifier creates a classifier that runs command with args,
// bounding each call by timeout.
func NewSidecarClassifier(command string, args []string, timeout time.Duration) *SidecarClassifier {
	return &SidecarClassifier{
		command: command,
		args:    args,
		timeout: timeout,
	}
}

// Classify encodes frames, runs the classifier and parses its response.
func (c *SidecarClassifier) Classify(ctx context.Context, frames []*gocv.Mat) (map[string]float64, error) {
	req := classifyRequest{Frames: make([][]byte, 0, len(frames))}
	for _, f := range frames {
		if f == nil || f.Empty() {
			continue
		}
		buf, err := gocv.IMEncode(".jpg", *f)
		if err != nil {
			return nil, fmt.Errorf("encode frame: %w", err)
		}
		data := make([]byte, buf.Len())
		copy(data, buf.GetBytes())
		buf.Close()
		req.Frames = append(req.Frames, data)
	}

	return c.run(ctx, &req)
}

func (c *SidecarClassifier) run(ctx context.Context, req *classifyRequest) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.WaitDelay = time.Second

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("classifier timeout after %s", c.timeout)
	}

	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("classifier failed: %w, stderr: %s", err, s)
		}
		return nil, fmt.Errorf("classifier failed: %w", err)
	}

	var response classifyResponse
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse classifier response: %w, stdout: %s", err, stdout.String())
	}
	if response.Error != "" {
		return nil, fmt.Errorf("classifier error: %s", response.Error)
	}

	return response.Probabilities, nil
}

// MockClassifier is a test implementation of Classifier.
type MockClassifier struct {
	mu       sync.Mutex
	probs    map[string]float64
	sequence []map[string]float64
	errs     map[int]error
	calls    int
}

// NewMockClassifier creates a MockClassifier returning an empty distribution.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{errs: make(map[int]error)}
}

// SetProbabilities sets the distribution returned by every call.
func (m *MockClassifier) SetProbabilities(p map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probs = p
}

// SetSequence sets per-call distributions; calls past the end use the fixed one.
func (m *MockClassifier) SetSequence(seq []map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = seq
}

// SetErrorAt makes the call with the given zero-based index fail.
func (m *MockClassifier) SetErrorAt(call int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[call] = err
}

// Calls returns how many times Classify was invoked.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Classify returns the configured distribution or error.
func (m *MockClassifier) Classify(ctx context.Context, frames []*gocv.Mat) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.calls
	m.calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.errs[call]; ok {
		return nil, err
	}
	if call < len(m.sequence) {
		return m.sequence[call], nil
	}
	return m.probs, nil
}
