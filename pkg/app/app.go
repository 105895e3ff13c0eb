// Package app wires the rep counter together: configuration, the session
// controller, the capture pipeline, set history and the web API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/fitview/internal/config"
	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/detection"
	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/pipeline"
	"github.com/teslashibe/fitview/pkg/session"
	"github.com/teslashibe/fitview/pkg/store"
	"github.com/teslashibe/fitview/pkg/web"
)

// statusInterval is how often the full status is pushed while capturing.
const statusInterval = time.Second

// Opener opens a frame source and the detector that turns its frames into
// landmarks. The app closes both when capture stops.
type Opener func(ctx context.Context) (camera.Source, detection.Detector, error)

// Option configures an App.
type Option func(*App)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithOpener replaces the source/detector factory derived from the config.
func WithOpener(open Opener) Option {
	return func(a *App) { a.open = open }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// App is the main fitview application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config *config.Config
	log    *slog.Logger
	open   Opener
	now    func() time.Time

	ctrl    *session.Controller
	cameras *camera.Manager
	store   *store.Store // nil when set history is disabled
	server  *web.Server

	unsubscribe func()

	mu        sync.Mutex
	run       *captureRun
	starting  bool // source being opened outside mu
	lastStats pipeline.Stats
	setStart  time.Time
}

type captureRun struct {
	id     uuid.UUID
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	pipe   *pipeline.Pipeline
}

// New creates the application from a validated configuration.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kind, err := cfg.ExerciseKind()
	if err != nil {
		return nil, err
	}

	a := &App{
		config:  cfg,
		log:     slog.Default(),
		now:     time.Now,
		cameras: camera.NewManager(cfg.Camera),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.open == nil {
		a.open = a.openConfigured
	}

	a.ctrl, err = session.NewController(kind, cfg.Counting,
		session.WithLogger(a.log.With("component", "session")),
		session.WithClock(a.now))
	if err != nil {
		return nil, err
	}
	a.setStart = a.now()
	a.cameras.OnConfigChange = a.cameraChanged
	return a, nil
}

// Init opens set storage and builds the web server.
// Call this after New() and before Run().
func (a *App) Init() error {
	if path := a.config.Storage.Path; path != "" {
		st, err := store.Open(path, a.log.With("component", "store"))
		if err != nil {
			return fmt.Errorf("storage init: %w", err)
		}
		a.store = st
	} else {
		a.log.Info("set history disabled")
	}

	a.server = web.NewServer(a.config.Server.Addr(), a, a.log.With("component", "web"))
	a.unsubscribe = a.ctrl.Subscribe(a.server.PublishState)

	a.log.Info("fitview ready",
		"exercise", a.ctrl.Selected(),
		"source", a.config.Source,
		"addr", a.config.Server.Addr())
	return nil
}

// Controller returns the session controller.
func (a *App) Controller() *session.Controller {
	return a.ctrl
}

// Server returns the web server built by Init.
func (a *App) Server() *web.Server {
	return a.server
}

// Run serves the API and pushes status while capturing.
// Blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return errors.New("app: Init must be called before Run")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start(ctx) }()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return fmt.Errorf("web server: %w", err)
		case <-ticker.C:
			if st := a.Status(); st.Capturing {
				a.server.PublishStatus(st)
			}
		}
	}
}

// Shutdown stops capture and releases every component.
func (a *App) Shutdown() {
	if err := a.StopCapture(); err != nil && !errors.Is(err, web.ErrConflict) {
		a.log.Warn("stop capture", "err", err)
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.server != nil {
		if err := a.server.Shutdown(); err != nil {
			a.log.Warn("web shutdown", "err", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("store close", "err", err)
		}
	}
	a.log.Info("fitview stopped")
}

// Status returns the dashboard snapshot.
func (a *App) Status() web.Status {
	a.mu.Lock()
	capturing := a.run != nil
	stats := a.lastStats
	if capturing {
		stats = a.run.pipe.Stats()
	}
	a.mu.Unlock()

	return web.Status{
		Session:   a.ctrl.Snapshot(),
		Capturing: capturing,
		Source:    a.config.Source,
		Pipeline:  stats,
	}
}

// SelectExercise switches the counted exercise and starts a new set.
func (a *App) SelectExercise(kind exercise.Kind) (session.State, error) {
	if err := a.ctrl.Select(kind); err != nil {
		return session.State{}, err
	}
	a.mu.Lock()
	a.setStart = a.now()
	a.mu.Unlock()
	return a.ctrl.Snapshot(), nil
}

// ResetCount clears the selected exercise's count without recording it.
func (a *App) ResetCount() session.State {
	prev := a.ctrl.Reset()
	a.mu.Lock()
	a.setStart = a.now()
	a.mu.Unlock()
	return prev
}

// FinishSet records the current count as a set and resets the counter.
// The count is taken and cleared in one step, so reps counted while the set
// is written land in the next set. If the write fails the reps are given
// back.
func (a *App) FinishSet(ctx context.Context) (store.Set, error) {
	if a.store == nil {
		return store.Set{}, fmt.Errorf("%w: set history disabled", web.ErrUnavailable)
	}

	a.mu.Lock()
	start := a.setStart
	end := a.now()
	prev := a.ctrl.Reset()
	a.setStart = end
	a.mu.Unlock()

	set, err := a.store.Record(ctx, store.Set{
		Exercise:  prev.Exercise,
		Reps:      prev.Count,
		StartedAt: start,
		EndedAt:   end,
	})
	if err != nil {
		a.ctrl.Restore(prev.Exercise, prev.Count)
		a.mu.Lock()
		a.setStart = start
		a.mu.Unlock()
		return store.Set{}, err
	}
	return set, nil
}

// Sets lists recorded sets, newest first.
func (a *App) Sets(ctx context.Context, limit int) ([]store.Set, error) {
	if a.store == nil {
		return nil, fmt.Errorf("%w: set history disabled", web.ErrUnavailable)
	}
	return a.store.List(ctx, limit)
}

// Set returns one recorded set.
func (a *App) Set(ctx context.Context, id uuid.UUID) (store.Set, error) {
	if a.store == nil {
		return store.Set{}, fmt.Errorf("%w: set history disabled", web.ErrUnavailable)
	}
	return a.store.Get(ctx, id)
}

// Totals aggregates recorded sets per exercise.
func (a *App) Totals(ctx context.Context) ([]store.Total, error) {
	if a.store == nil {
		return nil, fmt.Errorf("%w: set history disabled", web.ErrUnavailable)
	}
	return a.store.Totals(ctx)
}

// CameraConfig returns the capture configuration used on the next start.
func (a *App) CameraConfig() camera.Config {
	return a.cameras.GetConfig()
}

// UpdateCamera changes the capture configuration.
func (a *App) UpdateCamera(params map[string]any) error {
	return a.cameras.UpdateConfig(params)
}

// Capturing reports whether a pipeline is running.
func (a *App) Capturing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.run != nil
}
