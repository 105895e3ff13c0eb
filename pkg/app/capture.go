package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/teslashibe/fitview/internal/config"
	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/detection"
	"github.com/teslashibe/fitview/pkg/pipeline"
	"github.com/teslashibe/fitview/pkg/remote"
	"github.com/teslashibe/fitview/pkg/web"
)

// StartCapture opens the frame source and starts a pipeline feeding the
// session controller. The source is opened without holding the app lock,
// so status queries keep answering during a slow remote handshake.
func (a *App) StartCapture() error {
	a.mu.Lock()
	if a.run != nil || a.starting {
		a.mu.Unlock()
		return fmt.Errorf("%w: capture already running", web.ErrConflict)
	}
	a.starting = true
	a.mu.Unlock()

	run, source, detector, err := a.prepare()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.starting = false
	if err != nil {
		return err
	}

	a.run = run
	a.ctrl.SetActive(true)
	go a.capture(run.ctx, run, source, detector)

	a.log.Info("capture started", "run", run.id, "source", a.config.Source)
	return nil
}

// prepare opens the source and detector and builds the pipeline for one run.
func (a *App) prepare() (*captureRun, camera.Source, detection.Detector, error) {
	ctx, cancel := context.WithCancel(context.Background())
	source, detector, err := a.open(ctx)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("%w: opening source: %v", web.ErrUnavailable, err)
	}

	opts := []pipeline.Option{pipeline.WithLogger(a.log.With("component", "pipeline"))}
	if a.server != nil {
		opts = append(opts, pipeline.WithPreview(func(f camera.Frame) {
			if len(f.Data) > 0 {
				a.server.SendCameraFrame(f.Data)
			}
		}))
	}
	pipe, err := pipeline.New(source, detector, a.ctrl, a.config.Pipeline, opts...)
	if err != nil {
		cancel()
		source.Close()
		detector.Close()
		return nil, nil, nil, err
	}

	run := &captureRun{
		id:     uuid.New(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		pipe:   pipe,
	}
	return run, source, detector, nil
}

// StopCapture cancels the running pipeline and waits until it has
// stopped; no counter changes after it returns.
func (a *App) StopCapture() error {
	a.mu.Lock()
	run := a.run
	a.mu.Unlock()

	if run == nil {
		return fmt.Errorf("%w: capture not running", web.ErrConflict)
	}
	run.cancel()
	<-run.done
	return nil
}

func (a *App) capture(ctx context.Context, run *captureRun, source camera.Source, detector detection.Detector) {
	defer close(run.done)

	err := run.pipe.Run(ctx)
	if err != nil {
		a.log.Error("capture failed", "run", run.id, "err", err)
	}
	if cerr := source.Close(); cerr != nil {
		a.log.Warn("close source", "err", cerr)
	}
	if cerr := detector.Close(); cerr != nil {
		a.log.Warn("close detector", "err", cerr)
	}

	a.mu.Lock()
	if a.run == run {
		a.run = nil
	}
	a.lastStats = run.pipe.Stats()
	stats := a.lastStats
	if a.run == nil {
		a.ctrl.SetActive(false)
	}
	a.mu.Unlock()

	run.cancel()
	a.log.Info("capture stopped", "run", run.id, "stats", stats)
}

// openConfigured opens the source named by the config: a local camera with
// the pose model, or a remote landmark stream.
func (a *App) openConfigured(ctx context.Context) (camera.Source, detection.Detector, error) {
	switch a.config.Source {
	case config.SourceRemote:
		client, err := remote.Dial(ctx, a.config.Remote.URL, a.log.With("component", "remote"))
		if err != nil {
			return nil, nil, err
		}
		return client, remote.Decoder{}, nil

	default:
		detector, err := detection.NewYOLOPose(a.config.Detector, a.log.With("component", "detection"))
		if err != nil {
			return nil, nil, err
		}
		source, err := camera.OpenDevice(a.cameras.GetConfig())
		if err != nil {
			detector.Close()
			return nil, nil, err
		}
		return source, detector, nil
	}
}

// cameraChanged restarts a running camera capture so the new settings take
// effect.
func (a *App) cameraChanged(cfg camera.Config) error {
	if a.config.Source != config.SourceCamera || !a.Capturing() {
		return nil
	}
	a.log.Info("restarting capture for camera config",
		"width", cfg.Width, "height", cfg.Height, "fps", cfg.Framerate)
	if err := a.StopCapture(); err != nil {
		return err
	}
	return a.StartCapture()
}
