package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/detection"
	"github.com/teslashibe/fitview/pkg/pose"
)

// Decoder is a detection.Detector for frames whose Data is already a
// JSON landmark frame. The sequence number and time of the camera frame
// win over those in the payload.
type Decoder struct{}

var _ detection.Detector = Decoder{}

// Detect decodes f.Data. Frames without landmarks return
// detection.ErrNoPose.
func (Decoder) Detect(ctx context.Context, f camera.Frame) (pose.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pose.Frame{}, err
	}

	var decoded pose.Frame
	if err := json.Unmarshal(f.Data, &decoded); err != nil {
		return pose.Frame{}, fmt.Errorf("remote: decode frame %d: %w", f.Seq, err)
	}
	if decoded.Len() == 0 {
		return pose.Frame{}, detection.ErrNoPose
	}
	return pose.NewFrame(f.Seq, f.Time, decoded.Landmarks())
}

// Close is a no-op.
func (Decoder) Close() error { return nil }
