package feature

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/pose"
	"gonum.org/v1/gonum/spatial/r3"
)

func frame(t *testing.T, points map[pose.Joint]r3.Vec) pose.Frame {
	t.Helper()
	var ls []pose.Landmark
	for j, p := range points {
		ls = append(ls, pose.Landmark{Joint: j, Position: p})
	}
	f, err := pose.NewFrame(1, time.Time{}, ls)
	require.NoError(t, err)
	return f
}

func TestSitupDistance(t *testing.T) {
	f := frame(t, map[pose.Joint]r3.Vec{
		pose.RightKnee:  {X: 0.2, Y: 0, Z: 0},
		pose.LeftKnee:   {X: -0.2, Y: 0, Z: 0},
		pose.CenterHead: {X: 0, Y: 0.3, Z: 0.4},
	})

	d, err := SitupDistance(f)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, d, 1e-9)
}

func TestPushupDistance(t *testing.T) {
	f := frame(t, map[pose.Joint]r3.Vec{
		pose.RightWrist: {X: 1, Y: 0, Z: 2},
		pose.LeftWrist:  {X: -1, Y: 0, Z: 2},
		pose.CenterHead: {X: 0, Y: 0, Z: 0},
	})

	d, err := PushupDistance(f)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, 1e-9)
}

func TestSquatKneeAngle(t *testing.T) {
	tests := []struct {
		name  string
		ankle r3.Vec
		root  r3.Vec
		want  float64
	}{
		{"straight leg", r3.Vec{Y: -1}, r3.Vec{Y: 1}, 180},
		{"right angle", r3.Vec{Y: -1}, r3.Vec{X: 1}, 90},
		{"deep squat", r3.Vec{Y: -1}, r3.Vec{X: math.Sin(math.Pi / 6), Y: -math.Cos(math.Pi / 6)}, 30},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := frame(t, map[pose.Joint]r3.Vec{
				pose.LeftKnee:   {},
				pose.RightAnkle: tc.ankle,
				pose.Root:       tc.root,
			})
			got, err := SquatKneeAngle(f)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-6)
		})
	}
}

func TestAngleAt_ClampsCosine(t *testing.T) {
	// Colinear rays whose normalized dot product can overshoot 1 by an ulp.
	v := r3.Vec{X: 0.1, Y: 0.7, Z: 0.3}
	got, err := AngleAt(r3.Vec{}, v, r3.Scale(3, v))
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got))
	assert.InDelta(t, 0, got, 1e-6)
}

func TestAngleAt_Degenerate(t *testing.T) {
	_, err := AngleAt(r3.Vec{X: 1}, r3.Vec{X: 1}, r3.Vec{Y: 1})
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestExtract_MissingLandmark(t *testing.T) {
	f := frame(t, map[pose.Joint]r3.Vec{
		pose.RightKnee: {X: 0.2},
		pose.LeftKnee:  {X: -0.2},
	})

	_, err := Extract(f, exercise.Situps)
	require.ErrorIs(t, err, pose.ErrMissingLandmark)
}

func TestExtract_Lunges(t *testing.T) {
	f := frame(t, nil)
	_, err := Extract(f, exercise.Lunges)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestExtract_Idempotent(t *testing.T) {
	f := frame(t, map[pose.Joint]r3.Vec{
		pose.RightKnee:  {X: 0.21, Y: 0.4, Z: -0.1},
		pose.LeftKnee:   {X: -0.19, Y: 0.41, Z: 0.05},
		pose.CenterHead: {X: 0.02, Y: 1.1, Z: 0.3},
		pose.RightWrist: {X: 0.3, Y: 0.9},
		pose.LeftWrist:  {X: -0.3, Y: 0.95},
		pose.RightAnkle: {X: 0.2, Y: 0},
		pose.Root:       {X: 0, Y: 0.9, Z: 0.1},
	})

	for _, kind := range []exercise.Kind{exercise.Situps, exercise.Squats, exercise.Pushups} {
		first, err := Extract(f, kind)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := Extract(f, kind)
			require.NoError(t, err)
			assert.Equal(t, first, again, kind.String())
		}
	}
}

func TestFor_Units(t *testing.T) {
	_, unit, err := For(exercise.Squats)
	require.NoError(t, err)
	assert.Equal(t, Degrees, unit)

	_, unit, err = For(exercise.Pushups)
	require.NoError(t, err)
	assert.Equal(t, Distance, unit)
}
