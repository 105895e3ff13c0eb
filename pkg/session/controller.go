// Package session owns the active exercise selection and one rep counter
// per exercise, and publishes count/phase/feature snapshots to observers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/feature"
	"github.com/teslashibe/fitview/pkg/pose"
	"github.com/teslashibe/fitview/pkg/repcount"
)

var (
	// ErrStale is returned when a feature computed for one exercise arrives
	// after the selection has moved to another.
	ErrStale = errors.New("session: stale feature for unselected exercise")
)

// State is what observers see after every change.
type State struct {
	Exercise  exercise.Kind              `json:"exercise"`
	Count     int                        `json:"count"`
	Phase     bool                       `json:"phase"`
	History   [repcount.HistorySize]bool `json:"history"`
	Feature   float64                    `json:"feature"`
	Unit      feature.Unit               `json:"unit"`
	Active    bool                       `json:"active"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// GoingDown reports the squat/push-up phase flag.
func (s State) GoingDown() bool {
	return s.Exercise != exercise.Situps && s.Phase
}

// GoingToKnee reports the sit-up phase flag.
func (s State) GoingToKnee() bool {
	return s.Exercise == exercise.Situps && s.Phase
}

// Observer receives a snapshot after each mutation. Observers run while the
// controller lock is held, in mutation order; they must not block or call
// back into the Controller.
type Observer func(State)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the single owner of all rep counter state.
type Controller struct {
	mu        sync.Mutex
	selected  exercise.Kind
	counters  map[exercise.Kind]repcount.Counter
	feature   float64
	unit      feature.Unit
	active    bool
	updatedAt time.Time

	observers map[int]Observer
	nextObs   int

	log *slog.Logger
	now func() time.Time
}

// NewController creates a controller with one counter per implemented
// exercise and initial selection kind.
func NewController(kind exercise.Kind, cfg repcount.Config, opts ...Option) (*Controller, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", exercise.ErrUnknownKind, int(kind))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	c := &Controller{
		selected:  kind,
		counters:  make(map[exercise.Kind]repcount.Counter),
		observers: make(map[int]Observer),
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, k := range exercise.All() {
		if !k.Implemented() {
			continue
		}
		counter, err := repcount.New(k, cfg)
		if err != nil {
			return nil, err
		}
		c.counters[k] = counter
	}
	c.updatedAt = c.now()
	return c, nil
}

// Select switches the active exercise. Each exercise keeps its own counter,
// so no phase or history crosses over. The displayed feature is cleared.
func (c *Controller) Select(kind exercise.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", exercise.ErrUnknownKind, int(kind))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == kind {
		return nil
	}
	c.log.Info("exercise selected", "from", c.selected, "to", kind)
	c.selected = kind
	c.feature = 0
	c.unit = ""
	c.changed()
	return nil
}

// Selected returns the active exercise.
func (c *Controller) Selected() exercise.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// ProcessFrame extracts the selected exercise's feature from f and applies
// it. A frame that cannot be extracted leaves all state unchanged.
func (c *Controller) ProcessFrame(f pose.Frame) (State, error) {
	kind := c.Selected()
	v, err := feature.Extract(f, kind)
	if err != nil {
		c.log.Debug("frame skipped", "seq", f.Seq(), "exercise", kind, "err", err)
		return c.Snapshot(), err
	}
	return c.Apply(v)
}

// Apply feeds an extracted feature to the counter of its exercise.
// Features for an exercise other than the selected one return ErrStale
// without touching any state.
func (c *Controller) Apply(v feature.Value) (State, error) {
	return c.ApplyContext(context.Background(), v)
}

// ApplyContext is Apply guarded by ctx: once ctx is done it returns
// ctx.Err() and changes nothing. The check happens under the controller
// lock, so a cancel that returns before the lock is taken always wins.
func (c *Controller) ApplyContext(ctx context.Context, v feature.Value) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return c.snapshot(), err
	}
	if v.Kind != c.selected {
		return c.snapshot(), fmt.Errorf("%w: got %v, selected %v", ErrStale, v.Kind, c.selected)
	}
	counter, ok := c.counters[v.Kind]
	if !ok {
		return c.snapshot(), fmt.Errorf("session: %w: %v", feature.ErrNotImplemented, v.Kind)
	}

	before := counter.State().Count
	after := counter.Update(v.Value)
	c.feature = v.Value
	c.unit = v.Unit
	if after.Count != before {
		c.log.Info("rep counted", "exercise", v.Kind, "count", after.Count, "feature", v.Value)
	}
	c.changed()
	return c.snapshot(), nil
}

// Reset clears the selected exercise's counter and returns the state it
// had before the reset.
func (c *Controller) Reset() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.snapshot()
	if counter, ok := c.counters[c.selected]; ok {
		counter.Reset()
	}
	c.log.Info("count reset", "exercise", c.selected, "previous", prev.Count)
	c.changed()
	return prev
}

// Restore gives reps back to kind's counter, for a reset whose result could
// not be kept. Reps counted since the reset are preserved.
func (c *Controller) Restore(kind exercise.Kind, reps int) {
	if reps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	counter, ok := c.counters[kind]
	if !ok {
		return
	}
	counter.Credit(reps)
	c.log.Info("count restored", "exercise", kind, "reps", reps)
	c.changed()
}

// ResetAll clears every counter.
func (c *Controller) ResetAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, counter := range c.counters {
		counter.Reset()
	}
	c.feature = 0
	c.changed()
}

// SetActive records whether capture is running.
func (c *Controller) SetActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == active {
		return
	}
	c.active = active
	c.changed()
}

// Snapshot returns the current state of the selected exercise.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// CounterState returns the raw counter state for any implemented exercise.
func (c *Controller) CounterState(kind exercise.Kind) (repcount.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	counter, ok := c.counters[kind]
	if !ok {
		return repcount.State{}, false
	}
	return counter.State(), true
}

// Subscribe registers fn for state changes and returns a function that
// removes it.
func (c *Controller) Subscribe(fn Observer) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// snapshot must be called with mu held.
func (c *Controller) snapshot() State {
	s := State{
		Exercise:  c.selected,
		Feature:   c.feature,
		Unit:      c.unit,
		Active:    c.active,
		UpdatedAt: c.updatedAt,
	}
	if counter, ok := c.counters[c.selected]; ok {
		rs := counter.State()
		s.Count, s.Phase, s.History = rs.Count, rs.Phase, rs.History
	}
	return s
}

// changed must be called with mu held.
func (c *Controller) changed() {
	c.updatedAt = c.now()
	if len(c.observers) == 0 {
		return
	}
	s := c.snapshot()
	for _, fn := range c.observers {
		fn(s)
	}
}
