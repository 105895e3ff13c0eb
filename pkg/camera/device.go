package camera

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// DeviceSource captures frames from a local camera, video file or stream
// URL through OpenCV and encodes them as JPEG.
type DeviceSource struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	cfg     Config
	seq     uint64
	closed  bool
}

// OpenDevice opens cfg.Device. A numeric device is treated as a camera
// index; anything else is passed to OpenCV as a file or URL.
func OpenDevice(cfg Config) (*DeviceSource, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)
	if id, convErr := strconv.Atoi(cfg.Device); convErr == nil {
		capture, err = gocv.VideoCaptureDevice(id)
	} else {
		capture, err = gocv.VideoCaptureFile(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", cfg.Device, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &DeviceSource{
		capture: capture,
		mat:     gocv.NewMat(),
		cfg:     cfg,
	}, nil
}

// Config returns the configuration the device was opened with.
func (d *DeviceSource) Config() Config {
	return d.cfg
}

// Next reads and encodes one frame. A failed read on a file source means
// the end of the video and returns io.EOF.
func (d *DeviceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Frame{}, io.EOF
	}
	if ok := d.capture.Read(&d.mat); !ok || d.mat.Empty() {
		return Frame{}, io.EOF
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, d.mat, []int{int(gocv.IMWriteJpegQuality), d.cfg.Quality})
	if err != nil {
		return Frame{}, fmt.Errorf("camera: encode frame %d: %w", d.seq, err)
	}
	defer buf.Close()

	// NativeByteBuffer memory is owned by OpenCV.
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	f := Frame{
		Seq:    d.seq,
		Time:   time.Now(),
		Data:   data,
		Width:  d.mat.Cols(),
		Height: d.mat.Rows(),
	}
	d.seq++
	return f, nil
}

// Close releases the capture device.
func (d *DeviceSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.mat.Close()
	return d.capture.Close()
}
