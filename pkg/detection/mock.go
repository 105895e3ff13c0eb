package detection

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/pose"
)

// Mock is a scripted Detector for tests.
type Mock struct {
	// DetectFunc produces the result for each frame. A nil DetectFunc
	// returns ErrNoPose.
	DetectFunc func(ctx context.Context, f camera.Frame) (pose.Frame, error)

	calls  atomic.Int64
	mu     sync.Mutex
	closed bool
}

// Detect calls DetectFunc.
func (m *Mock) Detect(ctx context.Context, f camera.Frame) (pose.Frame, error) {
	m.calls.Add(1)
	if m.DetectFunc == nil {
		return pose.Frame{}, ErrNoPose
	}
	return m.DetectFunc(ctx, f)
}

// Calls returns how many frames were passed to Detect.
func (m *Mock) Calls() int {
	return int(m.calls.Load())
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
