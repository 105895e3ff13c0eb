package detection

import (
	"image"
	"math"
	"testing"
)

func TestYOLOPose_ParseOutput(t *testing.T) {
	const anchors = 2
	data := make([]float32, yoloPoseDims*anchors)
	set := func(row, i int, v float32) { data[row*anchors+i] = v }

	// Anchor 0: a confident person. Anchor 1: below threshold.
	set(0, 0, 320)
	set(1, 0, 320)
	set(2, 0, 128)
	set(3, 0, 256)
	set(4, 0, 0.9)
	set(5, 0, 320)
	set(6, 0, 160)
	set(7, 0, 0.8)
	set(4, 1, 0.1)

	d := &YOLOPose{config: DefaultConfig(), inputSize: image.Pt(640, 640)}
	people := d.parseOutput(data, anchors, 1280, 720)
	if len(people) != 1 {
		t.Fatalf("got %d people, want 1", len(people))
	}

	near := func(got, want float64) bool { return math.Abs(got-want) < 1e-6 }
	box := people[0].Box
	if !near(box.X, 0.4) || !near(box.Y, 0.3) || !near(box.W, 0.2) || !near(box.H, 0.4) {
		t.Errorf("box: got %+v", box)
	}
	if !near(box.Confidence, float64(float32(0.9))) {
		t.Errorf("confidence: got %v", box.Confidence)
	}
	kp := people[0].Keypoints[0]
	if !near(kp.X, 640) || !near(kp.Y, 180) || !near(kp.Score, float64(float32(0.8))) {
		t.Errorf("keypoint 0: got %+v", kp)
	}
}

func TestYOLOPose_ParseOutputEmpty(t *testing.T) {
	d := &YOLOPose{config: DefaultConfig(), inputSize: image.Pt(640, 640)}
	if people := d.parseOutput(make([]float32, yoloPoseDims*3), 3, 640, 640); people != nil {
		t.Errorf("got %d people from an empty tensor", len(people))
	}
}
