package camera

import (
	"context"
	"io"
	"sync"
	"time"
)

// Frame is one captured image.
type Frame struct {
	Seq    uint64    // Capture order, starting at 0
	Time   time.Time // Capture time
	Data   []byte    // Encoded payload (JPEG for cameras)
	Width  int
	Height int
}

// Source produces frames in capture order. Next blocks until a frame is
// available and returns io.EOF once the source is exhausted.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// SliceSource replays a fixed list of frames, for tests and recordings.
type SliceSource struct {
	mu     sync.Mutex
	frames []Frame
	pos    int
	delay  time.Duration
	closed bool
}

// NewSliceSource creates a source over frames. Seq and Time are filled in
// when left zero. A positive delay paces Next like a live camera.
func NewSliceSource(frames []Frame, delay time.Duration) *SliceSource {
	out := make([]Frame, len(frames))
	for i, f := range frames {
		if f.Seq == 0 {
			f.Seq = uint64(i)
		}
		out[i] = f
	}
	return &SliceSource{frames: out, delay: delay}
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(s.delay):
		}
	} else if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	if f.Time.IsZero() {
		f.Time = time.Now()
	}
	return f, nil
}

// Close stops the source; subsequent Next calls return io.EOF.
func (s *SliceSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
