// Package feature turns a landmark frame into the single scalar signal
// that a rep counter watches: a distance for sit-ups and push-ups, a knee
// angle for squats. Extractors are pure functions of the frame.
package feature

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/pose"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrNotImplemented is returned for exercise kinds without an extractor.
	ErrNotImplemented = errors.New("feature: exercise not implemented")

	// ErrDegenerateGeometry is returned when an angle ray has zero length.
	ErrDegenerateGeometry = errors.New("feature: degenerate geometry")
)

// Unit describes what a feature value measures.
type Unit string

const (
	Distance Unit = "distance" // same units as landmark positions
	Degrees  Unit = "degrees"
)

// Value is one extracted feature sample.
type Value struct {
	Kind  exercise.Kind `json:"exercise"`
	Value float64       `json:"value"`
	Unit  Unit          `json:"unit"`
}

// Extractor computes a feature from a frame.
type Extractor func(pose.Frame) (float64, error)

// For returns the extractor and unit for an exercise kind.
func For(kind exercise.Kind) (Extractor, Unit, error) {
	switch kind {
	case exercise.Situps:
		return SitupDistance, Distance, nil
	case exercise.Squats:
		return SquatKneeAngle, Degrees, nil
	case exercise.Pushups:
		return PushupDistance, Distance, nil
	default:
		return nil, "", fmt.Errorf("%w: %v", ErrNotImplemented, kind)
	}
}

// Extract runs the extractor selected by kind.
func Extract(f pose.Frame, kind exercise.Kind) (Value, error) {
	fn, unit, err := For(kind)
	if err != nil {
		return Value{}, err
	}
	v, err := fn(f)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: kind, Value: v, Unit: unit}, nil
}

// SitupDistance is the distance from the midpoint of both knees to the
// center of the head.
func SitupDistance(f pose.Frame) (float64, error) {
	return midpointToHead(f, pose.RightKnee, pose.LeftKnee)
}

// PushupDistance is the distance from the midpoint of both wrists to the
// center of the head.
func PushupDistance(f pose.Frame) (float64, error) {
	return midpointToHead(f, pose.RightWrist, pose.LeftWrist)
}

// SquatKneeAngle is the angle in degrees at the left knee between the ray
// toward the right ankle and the ray toward the root (pelvis).
func SquatKneeAngle(f pose.Frame) (float64, error) {
	p, err := f.Points(pose.RightAnkle, pose.LeftKnee, pose.Root)
	if err != nil {
		return 0, err
	}
	return AngleAt(p[1], p[0], p[2])
}

func midpointToHead(f pose.Frame, a, b pose.Joint) (float64, error) {
	p, err := f.Points(a, b, pose.CenterHead)
	if err != nil {
		return 0, err
	}
	return r3.Norm(r3.Sub(p[2], Midpoint(p[0], p[1]))), nil
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}

// AngleAt returns the angle in degrees at vertex between the rays toward
// a and b. The cosine is clamped to [-1, 1] before acos.
func AngleAt(vertex, a, b r3.Vec) (float64, error) {
	v1 := r3.Sub(a, vertex)
	v2 := r3.Sub(b, vertex)

	m := r3.Norm(v1) * r3.Norm(v2)
	if m == 0 {
		return 0, ErrDegenerateGeometry
	}

	cos := math.Max(-1, math.Min(1, r3.Dot(v1, v2)/m))
	return math.Acos(cos) * 180 / math.Pi, nil
}
