// Package pipeline connects a frame source, a pose detector and the
// session controller.
//
// Every captured frame is passed to the preview callback. One of every
// AnalyzeEvery frames gets an analysis sequence number and is queued for a
// worker, which runs detection and feature extraction. A single applier
// goroutine puts results back in sequence order before handing them to the
// controller, so counter updates happen in capture order no matter which
// worker finishes first.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/detection"
	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/feature"
	"github.com/teslashibe/fitview/pkg/session"
)

// Controller receives extracted features. *session.Controller implements it.
// ApplyContext must check ctx under the same lock that guards the mutation,
// so nothing is applied once ctx is done.
type Controller interface {
	Selected() exercise.Kind
	ApplyContext(ctx context.Context, v feature.Value) (session.State, error)
}

// PreviewFunc receives every captured frame. It runs on the capture
// goroutine and must not block.
type PreviewFunc func(camera.Frame)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithPreview sets the raw frame pass-through.
func WithPreview(fn PreviewFunc) Option {
	return func(p *Pipeline) { p.preview = fn }
}

// Pipeline runs one capture session.
type Pipeline struct {
	source   camera.Source
	detector detection.Detector
	ctrl     Controller
	cfg      Config
	preview  PreviewFunc
	log      *slog.Logger

	stats counters
}

type job struct {
	seq   uint64
	frame camera.Frame
	kind  exercise.Kind
}

type result struct {
	seq    uint64
	value  feature.Value
	err    error
	noPose bool
}

// New creates a pipeline. It does not take ownership of source or detector.
func New(source camera.Source, detector detection.Detector, ctrl Controller, cfg Config, opts ...Option) (*Pipeline, error) {
	if source == nil || detector == nil || ctrl == nil {
		return nil, errors.New("pipeline: source, detector and controller are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		source:   source,
		detector: detector,
		ctrl:     ctrl,
		cfg:      cfg,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Stats returns the current counters.
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

// Run captures until the source is exhausted, the source fails or ctx is
// cancelled. It returns only after every worker and the applier have
// exited; once ctx is done no further result reaches the controller.
// End of stream and cancellation return nil.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job, p.cfg.QueueSize)
	results := make(chan result, p.cfg.QueueSize+p.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, jobs, results)
		}()
	}

	applied := make(chan struct{})
	go func() {
		defer close(applied)
		p.apply(ctx, results)
	}()

	p.log.Info("pipeline started",
		"analyze_every", p.cfg.AnalyzeEvery,
		"workers", p.cfg.Workers,
		"queue", p.cfg.QueueSize)

	err := p.capture(ctx, jobs)
	close(jobs)
	if err != nil {
		cancel()
	}
	wg.Wait()
	close(results)
	<-applied

	p.log.Info("pipeline stopped", "stats", p.Stats())
	return err
}

// capture reads frames and queues every Nth one (the Nth, 2Nth, ... frame
// captured). A full queue drops the frame without consuming a sequence
// number.
func (p *Pipeline) capture(ctx context.Context, jobs chan<- job) error {
	var (
		captured uint64
		next     uint64
	)
	every := uint64(p.cfg.AnalyzeEvery)

	for {
		f, err := p.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pipeline: capture: %w", err)
		}

		captured++
		p.stats.captured.Add(1)
		if p.preview != nil {
			p.preview(f)
		}
		if captured%every != 0 {
			continue
		}

		j := job{seq: next, frame: f, kind: p.ctrl.Selected()}
		select {
		case jobs <- j:
			next++
			p.stats.analyzed.Add(1)
		default:
			p.stats.dropped.Add(1)
			p.log.Debug("frame dropped, analysis queue full", "frame", f.Seq)
		}
	}
}

func (p *Pipeline) worker(ctx context.Context, jobs <-chan job, results chan<- result) {
	for j := range jobs {
		results <- p.process(ctx, j)
	}
}

// process runs detection and extraction for one job. It never touches
// controller state.
func (p *Pipeline) process(ctx context.Context, j job) result {
	r := result{seq: j.seq}
	if err := ctx.Err(); err != nil {
		r.err = err
		return r
	}

	landmarks, err := p.detector.Detect(ctx, j.frame)
	if err != nil {
		r.err = err
		r.noPose = true
		return r
	}

	r.value, r.err = feature.Extract(landmarks, j.kind)
	return r
}

// apply is the single consumer of results. It buffers out-of-order
// results and applies them strictly by sequence number.
func (p *Pipeline) apply(ctx context.Context, results <-chan result) {
	pending := make(map[uint64]result)
	var next uint64

	for r := range results {
		pending[r.seq] = r
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			p.handle(ctx, ready)
		}
	}

	// Sequence gaps cannot happen: every queued job yields one result.
	for _, r := range pending {
		p.stats.discarded.Add(1)
		p.log.Warn("unapplied result", "seq", r.seq)
	}
}

func (p *Pipeline) handle(ctx context.Context, r result) {
	if ctx.Err() != nil {
		p.stats.discarded.Add(1)
		return
	}

	switch {
	case r.noPose:
		p.stats.noPose.Add(1)
		if !errors.Is(r.err, detection.ErrNoPose) {
			p.log.Warn("pose detection failed", "seq", r.seq, "err", r.err)
		}
		return
	case r.err != nil:
		p.stats.skipped.Add(1)
		p.log.Debug("frame skipped", "seq", r.seq, "err", r.err)
		return
	}

	if _, err := p.ctrl.ApplyContext(ctx, r.value); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			p.stats.discarded.Add(1)
			return
		}
		if errors.Is(err, session.ErrStale) {
			p.stats.stale.Add(1)
			p.log.Debug("stale result dropped", "seq", r.seq, "exercise", r.value.Kind)
			return
		}
		p.stats.skipped.Add(1)
		p.log.Debug("result rejected", "seq", r.seq, "err", err)
		return
	}
	p.stats.applied.Add(1)
}
