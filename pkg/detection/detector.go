// Package detection turns camera frames into body landmark frames.
package detection

import (
	"context"
	"errors"

	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/pose"
)

// ErrNoPose is returned when a frame contains no usable person.
var ErrNoPose = errors.New("detection: no pose in frame")

// Detector is the interface for pose detection backends.
type Detector interface {
	// Detect finds the most prominent person in the frame and returns
	// their landmarks. Frames with nobody in them return ErrNoPose.
	Detect(ctx context.Context, f camera.Frame) (pose.Frame, error)

	// Close releases resources
	Close() error
}

// Detection is a person bounding box.
type Detection struct {
	X, Y       float64 // Top-left corner (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection confidence (0-1)
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  `json:"model_path" yaml:"model_path"`                   // Path to ONNX pose model
	ConfidenceThresh float32 `json:"confidence" yaml:"confidence"`                   // Minimum person confidence
	NMSThresh        float32 `json:"nms" yaml:"nms"`                                 // Box overlap for suppression
	KeypointThresh   float64 `json:"keypoint_confidence" yaml:"keypoint_confidence"` // Minimum keypoint visibility
	InputSize        int     `json:"input_size" yaml:"input_size"`                   // Square model input
	BodyHeight       float64 `json:"body_height" yaml:"body_height"`                 // Nominal person size in metres
}

// DefaultConfig returns production defaults for YOLOv8n-pose
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/yolov8n-pose.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		KeypointThresh:   0.5,
		InputSize:        640,
		BodyHeight:       1.7,
	}
}

// SelectBest picks the most prominent person from multiple detections.
// Priority: confidence * 0.7 + area * 0.3
func SelectBest(people []Person) *Person {
	if len(people) == 0 {
		return nil
	}

	if len(people) == 1 {
		return &people[0]
	}

	maxArea := 0.0
	for _, p := range people {
		if p.Box.Area() > maxArea {
			maxArea = p.Box.Area()
		}
	}

	bestScore := -1.0
	var best *Person

	for i := range people {
		score := people[i].Box.Confidence * 0.7
		if maxArea > 0 {
			score += (people[i].Box.Area() / maxArea) * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &people[i]
		}
	}

	return best
}

// Validate checks the detector thresholds.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("detection: model_path is required")
	}
	if c.ConfidenceThresh <= 0 || c.ConfidenceThresh >= 1 {
		return errors.New("detection: confidence must be in (0,1)")
	}
	if c.NMSThresh <= 0 || c.NMSThresh >= 1 {
		return errors.New("detection: nms must be in (0,1)")
	}
	if c.KeypointThresh < 0 || c.KeypointThresh >= 1 {
		return errors.New("detection: keypoint_confidence must be in [0,1)")
	}
	if c.InputSize < 32 || c.InputSize%32 != 0 {
		return errors.New("detection: input_size must be a positive multiple of 32")
	}
	if c.BodyHeight <= 0 {
		return errors.New("detection: body_height must be positive")
	}
	return nil
}
