package detection

import (
	"math"
	"time"

	"github.com/teslashibe/fitview/pkg/pose"
	"gonum.org/v1/gonum/spatial/r3"
)

// COCO keypoint indices as emitted by YOLOv8-pose.
const (
	KeypointNose = iota
	KeypointLeftEye
	KeypointRightEye
	KeypointLeftEar
	KeypointRightEar
	KeypointLeftShoulder
	KeypointRightShoulder
	KeypointLeftElbow
	KeypointRightElbow
	KeypointLeftWrist
	KeypointRightWrist
	KeypointLeftHip
	KeypointRightHip
	KeypointLeftKnee
	KeypointRightKnee
	KeypointLeftAnkle
	KeypointRightAnkle

	NumKeypoints
)

// Keypoint is one 2D body keypoint in image pixels.
type Keypoint struct {
	X, Y  float64
	Score float64 // Visibility confidence (0-1)
}

// Person is one detected body.
type Person struct {
	Box       Detection
	Keypoints [NumKeypoints]Keypoint
}

// direct maps COCO keypoints onto joints of the same name.
var direct = map[int]pose.Joint{
	KeypointLeftShoulder:  pose.LeftShoulder,
	KeypointRightShoulder: pose.RightShoulder,
	KeypointLeftElbow:     pose.LeftElbow,
	KeypointRightElbow:    pose.RightElbow,
	KeypointLeftWrist:     pose.LeftWrist,
	KeypointRightWrist:    pose.RightWrist,
	KeypointLeftHip:       pose.LeftHip,
	KeypointRightHip:      pose.RightHip,
	KeypointLeftKnee:      pose.LeftKnee,
	KeypointRightKnee:     pose.RightKnee,
	KeypointLeftAnkle:     pose.LeftAnkle,
	KeypointRightAnkle:    pose.RightAnkle,
}

var headKeypoints = []int{KeypointNose, KeypointLeftEye, KeypointRightEye, KeypointLeftEar, KeypointRightEar}

// topHeadRatio extends the shoulder-to-head vector to the crown.
const topHeadRatio = 0.4

// ToFrame maps a 2D person onto the 3D joint vocabulary.
//
// Pixels are converted to metres by scaling the longer side of the person
// box to bodyHeight, with y pointing up and z fixed at 0. Keypoints below
// minScore are left out. The center head is the mean of the visible face
// keypoints; center shoulder, root and spine are midpoints of their
// neighbours and only present when both neighbours are.
func ToFrame(seq uint64, at time.Time, p Person, imgW, imgH int, bodyHeight, minScore float64) (pose.Frame, error) {
	span := math.Max(p.Box.W*float64(imgW), p.Box.H*float64(imgH))
	if span <= 0 {
		return pose.Frame{}, ErrNoPose
	}
	scale := bodyHeight / span

	toVec := func(k Keypoint) r3.Vec {
		return r3.Vec{X: k.X * scale, Y: (float64(imgH) - k.Y) * scale}
	}

	points := make(map[pose.Joint]r3.Vec, len(pose.Joints()))
	for idx, joint := range direct {
		if k := p.Keypoints[idx]; k.Score >= minScore {
			points[joint] = toVec(k)
		}
	}

	var head r3.Vec
	visible := 0
	for _, idx := range headKeypoints {
		if k := p.Keypoints[idx]; k.Score >= minScore {
			head = r3.Add(head, toVec(k))
			visible++
		}
	}
	if visible > 0 {
		points[pose.CenterHead] = r3.Scale(1/float64(visible), head)
	}

	midpoint(points, pose.CenterShoulder, pose.LeftShoulder, pose.RightShoulder)
	midpoint(points, pose.Root, pose.LeftHip, pose.RightHip)
	midpoint(points, pose.Spine, pose.Root, pose.CenterShoulder)

	if h, ok := points[pose.CenterHead]; ok {
		if s, ok := points[pose.CenterShoulder]; ok {
			points[pose.TopHead] = r3.Add(h, r3.Scale(topHeadRatio, r3.Sub(h, s)))
		}
	}

	if len(points) == 0 {
		return pose.Frame{}, ErrNoPose
	}

	landmarks := make([]pose.Landmark, 0, len(points))
	for j, v := range points {
		landmarks = append(landmarks, pose.Landmark{Joint: j, Position: v})
	}
	return pose.NewFrame(seq, at, landmarks)
}

func midpoint(points map[pose.Joint]r3.Vec, dst, a, b pose.Joint) {
	pa, okA := points[a]
	pb, okB := points[b]
	if okA && okB {
		points[dst] = r3.Scale(0.5, r3.Add(pa, pb))
	}
}
