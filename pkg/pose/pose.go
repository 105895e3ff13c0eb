// Package pose defines landmark frames: snapshots of named 3D body points
// produced by a pose-detection model for one video frame.
package pose

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Joint names a body landmark. Values match the 3D body pose model's
// joint identifiers so frames can be passed through unchanged.
type Joint string

// Joint vocabulary of the 3D body pose model.
const (
	TopHead        Joint = "human_top_head_3D"
	CenterHead     Joint = "human_center_head_3D"
	CenterShoulder Joint = "human_center_shoulder_3D"
	LeftShoulder   Joint = "human_left_shoulder_3D"
	RightShoulder  Joint = "human_right_shoulder_3D"
	LeftElbow      Joint = "human_left_elbow_3D"
	RightElbow     Joint = "human_right_elbow_3D"
	LeftWrist      Joint = "human_left_wrist_3D"
	RightWrist     Joint = "human_right_wrist_3D"
	Spine          Joint = "human_spine_3D"
	Root           Joint = "human_root_3D"
	LeftHip        Joint = "human_left_hip_3D"
	RightHip       Joint = "human_right_hip_3D"
	LeftKnee       Joint = "human_left_knee_3D"
	RightKnee      Joint = "human_right_knee_3D"
	LeftAnkle      Joint = "human_left_ankle_3D"
	RightAnkle     Joint = "human_right_ankle_3D"
)

var vocabulary = map[Joint]bool{
	TopHead: true, CenterHead: true, CenterShoulder: true,
	LeftShoulder: true, RightShoulder: true,
	LeftElbow: true, RightElbow: true,
	LeftWrist: true, RightWrist: true,
	Spine: true, Root: true,
	LeftHip: true, RightHip: true,
	LeftKnee: true, RightKnee: true,
	LeftAnkle: true, RightAnkle: true,
}

// Valid reports whether j is part of the joint vocabulary.
func (j Joint) Valid() bool {
	return vocabulary[j]
}

// Joints returns the full vocabulary in a stable order.
func Joints() []Joint {
	out := make([]Joint, 0, len(vocabulary))
	for j := range vocabulary {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Landmark is one named point with its 3D position.
type Landmark struct {
	Joint    Joint
	Position r3.Vec
}

// String returns a multi-line debug description of the landmark.
func (l Landmark) String() string {
	return fmt.Sprintf("%s:\n    x: %g\n    y: %g\n    z: %g",
		l.Joint, l.Position.X, l.Position.Y, l.Position.Z)
}

// Frame is an immutable set of landmarks for one video frame.
// Joint names within a frame are unique.
type Frame struct {
	seq    uint64
	time   time.Time
	points map[Joint]r3.Vec
}

// NewFrame builds a frame from landmarks. Duplicate joints and joints
// outside the vocabulary are rejected. The input slice is not retained.
func NewFrame(seq uint64, at time.Time, landmarks []Landmark) (Frame, error) {
	points := make(map[Joint]r3.Vec, len(landmarks))
	for _, l := range landmarks {
		if !l.Joint.Valid() {
			return Frame{}, fmt.Errorf("%w: %q", ErrUnknownJoint, l.Joint)
		}
		if _, dup := points[l.Joint]; dup {
			return Frame{}, fmt.Errorf("%w: %q", ErrDuplicateJoint, l.Joint)
		}
		points[l.Joint] = l.Position
	}
	return Frame{seq: seq, time: at, points: points}, nil
}

// Seq returns the sequence number assigned by the producer.
func (f Frame) Seq() uint64 { return f.seq }

// Time returns the capture time of the source image.
func (f Frame) Time() time.Time { return f.time }

// Len returns the number of landmarks in the frame.
func (f Frame) Len() int { return len(f.points) }

// Has reports whether the frame contains joint j.
func (f Frame) Has(j Joint) bool {
	_, ok := f.points[j]
	return ok
}

// Point returns the position of joint j, or a *MissingLandmarkError.
func (f Frame) Point(j Joint) (r3.Vec, error) {
	p, ok := f.points[j]
	if !ok {
		return r3.Vec{}, &MissingLandmarkError{Joint: j}
	}
	return p, nil
}

// Points looks up several joints at once and fails on the first absent one.
func (f Frame) Points(joints ...Joint) ([]r3.Vec, error) {
	out := make([]r3.Vec, len(joints))
	for i, j := range joints {
		p, err := f.Point(j)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Landmarks returns a copy of the frame's landmarks sorted by joint name.
func (f Frame) Landmarks() []Landmark {
	out := make([]Landmark, 0, len(f.points))
	for j, p := range f.points {
		out = append(out, Landmark{Joint: j, Position: p})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Joint < out[b].Joint })
	return out
}
