package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/pose"
	"gocv.io/x/gocv"
)

// yoloPoseDims is the per-anchor output width: 4 box + 1 score + 17*3 keypoints.
const yoloPoseDims = 5 + NumKeypoints*3

// YOLOPose uses a YOLOv8-pose ONNX model for single person pose estimation.
type YOLOPose struct {
	net       gocv.Net
	config    Config
	mu        sync.Mutex
	inputSize image.Point
	log       *slog.Logger
}

// NewYOLOPose loads the pose model.
func NewYOLOPose(cfg Config, logger *slog.Logger) (*YOLOPose, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("detection: model file not found: %s", cfg.ModelPath)
	}
	if logger == nil {
		logger = slog.Default()
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("detection: failed to load pose model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	logger.Info("pose model loaded", "path", cfg.ModelPath, "input", cfg.InputSize)

	return &YOLOPose{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputSize, cfg.InputSize),
		log:       logger,
	}, nil
}

// Detect decodes the JPEG frame and returns the landmarks of the most
// prominent person.
func (d *YOLOPose) Detect(ctx context.Context, f camera.Frame) (pose.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pose.Frame{}, err
	}

	people, w, h, err := d.detectPeople(f.Data)
	if err != nil {
		return pose.Frame{}, err
	}

	best := SelectBest(people)
	if best == nil {
		return pose.Frame{}, ErrNoPose
	}
	d.log.Debug("pose detected", "seq", f.Seq, "people", len(people), "confidence", best.Box.Confidence)

	return ToFrame(f.Seq, f.Time, *best, w, h, d.config.BodyHeight, d.config.KeypointThresh)
}

// detectPeople returns every person in the JPEG image and the image size.
// Decoding and blob preparation run concurrently; only the forward pass and
// reading its output hold the network lock, since a gocv Net is not safe for
// concurrent use.
func (d *YOLOPose) detectPeople(jpeg []byte) ([]Person, int, int, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("detection: decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, 0, 0, errors.New("detection: empty image")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	w, h := img.Cols(), img.Rows()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	// Output shape: [1, 56, 8400]
	sizes := output.Size()
	if len(sizes) != 3 || sizes[1] != yoloPoseDims {
		return nil, 0, 0, fmt.Errorf("detection: unexpected output shape %v", sizes)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("detection: read output: %w", err)
	}

	return d.parseOutput(data, sizes[2], w, h), w, h, nil
}

// parseOutput decodes the column-major YOLOv8-pose tensor into people,
// scaling boxes and keypoints back to image pixels.
func (d *YOLOPose) parseOutput(data []float32, anchors, imgW, imgH int) []Person {
	var (
		boxes       []image.Rectangle
		confidences []float32
		candidates  []int
	)

	sx := float32(imgW) / float32(d.inputSize.X)
	sy := float32(imgH) / float32(d.inputSize.Y)
	at := func(row, i int) float32 { return data[row*anchors+i] }

	for i := 0; i < anchors; i++ {
		score := at(4, i)
		if score < d.config.ConfidenceThresh {
			continue
		}

		cx, cy, bw, bh := at(0, i), at(1, i), at(2, i), at(3, i)
		x1 := int((cx - bw/2) * sx)
		y1 := int((cy - bh/2) * sy)
		x2 := int((cx + bw/2) * sx)
		y2 := int((cy + bh/2) * sy)

		boxes = append(boxes, image.Rect(x1, y1, x2, y2))
		confidences = append(confidences, score)
		candidates = append(candidates, i)
	}

	if len(boxes) == 0 {
		return nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.config.ConfidenceThresh, d.config.NMSThresh)

	people := make([]Person, 0, len(indices))
	for _, idx := range indices {
		box := boxes[idx]
		anchor := candidates[idx]

		p := Person{
			Box: Detection{
				X:          float64(box.Min.X) / float64(imgW),
				Y:          float64(box.Min.Y) / float64(imgH),
				W:          float64(box.Dx()) / float64(imgW),
				H:          float64(box.Dy()) / float64(imgH),
				Confidence: float64(confidences[idx]),
			},
		}
		for k := 0; k < NumKeypoints; k++ {
			row := 5 + k*3
			p.Keypoints[k] = Keypoint{
				X:     float64(at(row, anchor) * sx),
				Y:     float64(at(row+1, anchor) * sy),
				Score: float64(at(row+2, anchor)),
			}
		}
		people = append(people, p)
	}

	return people
}

// Close releases the detector resources
func (d *YOLOPose) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
