package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/fitview/internal/log"
	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/feature"
	"github.com/teslashibe/fitview/pkg/pose"
	"github.com/teslashibe/fitview/pkg/repcount"
	"gonum.org/v1/gonum/spatial/r3"
)

func newController(t *testing.T, kind exercise.Kind) *Controller {
	t.Helper()
	c, err := NewController(kind, repcount.DefaultConfig(), WithLogger(log.Discard()))
	require.NoError(t, err)
	return c
}

// situpFrame builds a frame whose sit-up feature equals d.
func situpFrame(t *testing.T, d float64) pose.Frame {
	t.Helper()
	f, err := pose.NewFrame(0, time.Time{}, []pose.Landmark{
		{Joint: pose.RightKnee, Position: r3.Vec{X: 0.1}},
		{Joint: pose.LeftKnee, Position: r3.Vec{X: -0.1}},
		{Joint: pose.CenterHead, Position: r3.Vec{Y: d}},
	})
	require.NoError(t, err)
	return f
}

func apply(t *testing.T, c *Controller, kind exercise.Kind, values ...float64) State {
	t.Helper()
	var s State
	var err error
	for _, v := range values {
		s, err = c.Apply(feature.Value{Kind: kind, Value: v})
		require.NoError(t, err)
	}
	return s
}

func TestController_SitupFrames(t *testing.T) {
	c := newController(t, exercise.Situps)

	var s State
	var err error
	for _, d := range []float64{0.70, 0.70, 0.49} {
		s, err = c.ProcessFrame(situpFrame(t, d))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, s.Count)
	assert.False(t, s.GoingToKnee())
	assert.InDelta(t, 0.49, s.Feature, 1e-9)
	assert.Equal(t, feature.Distance, s.Unit)
}

func TestController_MissingPointLeavesStateUnchanged(t *testing.T) {
	c := newController(t, exercise.Situps)
	_, err := c.ProcessFrame(situpFrame(t, 0.70))
	require.NoError(t, err)
	before := c.Snapshot()

	f, err := pose.NewFrame(9, time.Time{}, []pose.Landmark{
		{Joint: pose.RightKnee},
		{Joint: pose.LeftKnee},
	})
	require.NoError(t, err)

	notified := false
	unsubscribe := c.Subscribe(func(State) { notified = true })
	defer unsubscribe()

	s, err := c.ProcessFrame(f)
	require.ErrorIs(t, err, pose.ErrMissingLandmark)
	assert.Equal(t, before, s)
	assert.Equal(t, before, c.Snapshot())
	assert.False(t, notified)
}

func TestController_ExerciseIsolation(t *testing.T) {
	c := newController(t, exercise.Squats)

	// Arm the squat debounce history and commit one rep, then go back up
	// halfway so the squat counter sits in a non-initial state.
	apply(t, c, exercise.Squats, 65, 120)
	squat, _ := c.CounterState(exercise.Squats)
	require.Equal(t, repcount.State{Count: 1, Phase: true, History: [2]bool{true, true}}, squat)

	require.NoError(t, c.Select(exercise.Pushups))
	s := c.Snapshot()
	assert.Equal(t, exercise.Pushups, s.Exercise)
	assert.Equal(t, 0, s.Count)
	assert.True(t, s.GoingDown())
	assert.Equal(t, [2]bool{false, false}, s.History, "squat history must not leak into push-ups")

	// A single sub-threshold push-up sample counts once; squat history did
	// not pre-arm anything.
	s = apply(t, c, exercise.Pushups, 0.40)
	assert.Equal(t, 1, s.Count)

	// Switching back restores the untouched squat counter.
	require.NoError(t, c.Select(exercise.Squats))
	s = c.Snapshot()
	assert.Equal(t, 1, s.Count)
	assert.True(t, s.Phase)
}

func TestController_StaleFeature(t *testing.T) {
	c := newController(t, exercise.Pushups)

	_, err := c.Apply(feature.Value{Kind: exercise.Squats, Value: 10})
	require.ErrorIs(t, err, ErrStale)

	squat, _ := c.CounterState(exercise.Squats)
	assert.Equal(t, repcount.InitialSquat(), squat)
}

func TestController_Lunges(t *testing.T) {
	c := newController(t, exercise.Lunges)

	_, err := c.ProcessFrame(situpFrame(t, 1))
	assert.ErrorIs(t, err, feature.ErrNotImplemented)

	_, err = c.Apply(feature.Value{Kind: exercise.Lunges, Value: 1})
	assert.ErrorIs(t, err, feature.ErrNotImplemented)
	assert.Equal(t, 0, c.Snapshot().Count)
}

func TestController_Reset(t *testing.T) {
	c := newController(t, exercise.Pushups)
	apply(t, c, exercise.Pushups, 0.40, 0.60, 0.40)
	require.Equal(t, 2, c.Snapshot().Count)

	require.NoError(t, c.Select(exercise.Situps))
	apply(t, c, exercise.Situps, 0.70, 0.40)
	require.NoError(t, c.Select(exercise.Pushups))

	prev := c.Reset()
	assert.Equal(t, 2, prev.Count)
	assert.Equal(t, 0, c.Snapshot().Count)

	situps, _ := c.CounterState(exercise.Situps)
	assert.Equal(t, 1, situps.Count, "reset only touches the selected exercise")

	c.ResetAll()
	situps, _ = c.CounterState(exercise.Situps)
	assert.Equal(t, 0, situps.Count)
}

func TestController_SubscribeOrder(t *testing.T) {
	c := newController(t, exercise.Pushups)

	var counts []int
	unsubscribe := c.Subscribe(func(s State) { counts = append(counts, s.Count) })

	apply(t, c, exercise.Pushups, 0.60, 0.40, 0.60, 0.40)
	assert.Equal(t, []int{0, 1, 1, 2}, counts)

	unsubscribe()
	apply(t, c, exercise.Pushups, 0.60)
	assert.Len(t, counts, 4)
}

func TestController_SetActive(t *testing.T) {
	now := time.Date(2024, 10, 27, 9, 0, 0, 0, time.UTC)
	c, err := NewController(exercise.Situps, repcount.DefaultConfig(),
		WithLogger(log.Discard()),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	calls := 0
	c.Subscribe(func(State) { calls++ })

	c.SetActive(true)
	c.SetActive(true)
	assert.True(t, c.Snapshot().Active)
	assert.Equal(t, 1, calls)
	assert.Equal(t, now, c.Snapshot().UpdatedAt)
}

func TestNewController_Invalid(t *testing.T) {
	_, err := NewController(exercise.Kind(0), repcount.DefaultConfig())
	assert.ErrorIs(t, err, exercise.ErrUnknownKind)

	cfg := repcount.DefaultConfig()
	cfg.Pushups.Up = 0
	_, err = NewController(exercise.Pushups, cfg)
	assert.Error(t, err)
}

func TestController_ApplyContextCancelled(t *testing.T) {
	c := newController(t, exercise.Pushups)
	before := c.Snapshot()

	notified := false
	c.Subscribe(func(State) { notified = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := c.ApplyContext(ctx, feature.Value{Kind: exercise.Pushups, Value: 0.40})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, s)
	assert.Equal(t, before, c.Snapshot())
	assert.False(t, notified)
}

func TestController_Restore(t *testing.T) {
	c := newController(t, exercise.Pushups)
	apply(t, c, exercise.Pushups, 0.40, 0.60, 0.40)
	prev := c.Reset()
	require.Equal(t, 2, prev.Count)

	// A rep counted after the reset survives the restore.
	apply(t, c, exercise.Pushups, 0.60, 0.40)
	require.NoError(t, c.Select(exercise.Situps))

	c.Restore(prev.Exercise, prev.Count)
	pushups, _ := c.CounterState(exercise.Pushups)
	assert.Equal(t, 3, pushups.Count)
	assert.Equal(t, 0, c.Snapshot().Count, "restore targets the given exercise, not the selected one")

	c.Restore(exercise.Lunges, 5) // no counter: ignored
	c.Restore(exercise.Pushups, 0)
	pushups, _ = c.CounterState(exercise.Pushups)
	assert.Equal(t, 3, pushups.Count)
}
