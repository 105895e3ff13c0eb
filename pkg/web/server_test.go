package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/fitview/internal/log"
	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/session"
	"github.com/teslashibe/fitview/pkg/store"
)

// fakeBackend keeps just enough state to exercise the handlers.
type fakeBackend struct {
	mu        sync.Mutex
	state     session.State
	capturing bool
	sets      []store.Set
	camera    *camera.Manager
	noStore   bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		state:  session.State{Exercise: exercise.Situps},
		camera: camera.NewManager(camera.DefaultConfig()),
	}
}

func (f *fakeBackend) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{Session: f.state, Capturing: f.capturing, Source: "camera"}
}

func (f *fakeBackend) SelectExercise(kind exercise.Kind) (session.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = session.State{Exercise: kind}
	return f.state, nil
}

func (f *fakeBackend) ResetCount() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.state
	f.state.Count = 0
	return prev
}

func (f *fakeBackend) FinishSet(ctx context.Context) (store.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noStore {
		return store.Set{}, fmt.Errorf("%w: set history disabled", ErrUnavailable)
	}
	now := time.Now().UTC()
	set := store.Set{ID: uuid.New(), Exercise: f.state.Exercise, Reps: f.state.Count, StartedAt: now, EndedAt: now}
	f.sets = append(f.sets, set)
	f.state.Count = 0
	return set, nil
}

func (f *fakeBackend) Sets(ctx context.Context, limit int) ([]store.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > 0 && limit < len(f.sets) {
		return f.sets[:limit], nil
	}
	return f.sets, nil
}

func (f *fakeBackend) Set(ctx context.Context, id uuid.UUID) (store.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sets {
		if s.ID == id {
			return s, nil
		}
	}
	return store.Set{}, store.ErrNotFound
}

func (f *fakeBackend) Totals(ctx context.Context) ([]store.Total, error) {
	return nil, nil
}

func (f *fakeBackend) StartCapture() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.capturing {
		return fmt.Errorf("%w: capture already running", ErrConflict)
	}
	f.capturing = true
	return nil
}

func (f *fakeBackend) StopCapture() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.capturing {
		return fmt.Errorf("%w: capture not running", ErrConflict)
	}
	f.capturing = false
	return nil
}

func (f *fakeBackend) CameraConfig() camera.Config { return f.camera.GetConfig() }

func (f *fakeBackend) UpdateCamera(params map[string]any) error {
	return f.camera.UpdateConfig(params)
}

func newTestServer(t *testing.T) (*Server, *fakeBackend) {
	t.Helper()
	b := newFakeBackend()
	return NewServer(":0", b, log.Discard()), b
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestAPI_Status(t *testing.T) {
	s, _ := newTestServer(t)
	resp, body := do(t, s, "GET", "/api/status", "")
	assert.Equal(t, 200, resp.StatusCode)

	var st struct {
		Session struct {
			Exercise string `json:"exercise"`
			Count    int    `json:"count"`
		} `json:"session"`
		Capturing bool `json:"capturing"`
	}
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "situps", st.Session.Exercise)
	assert.False(t, st.Capturing)
}

func TestAPI_Exercises(t *testing.T) {
	s, _ := newTestServer(t)
	_, body := do(t, s, "GET", "/api/exercises", "")

	var list []ExerciseInfo
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 4)
	assert.Equal(t, ExerciseInfo{Name: "situps", Implemented: true, Selected: true}, list[0])
	assert.Equal(t, ExerciseInfo{Name: "lunges"}, list[3])
}

func TestAPI_SelectExercise(t *testing.T) {
	s, b := newTestServer(t)

	resp, _ := do(t, s, "PUT", "/api/exercise", `{"exercise":"Push-Ups"}`)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, exercise.Pushups, b.Status().Session.Exercise)

	resp, body := do(t, s, "PUT", "/api/exercise", `{"exercise":"burpees"}`)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Contains(t, string(body), "unknown kind")

	resp, _ = do(t, s, "PUT", "/api/exercise", `{`)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestAPI_ResetAndSets(t *testing.T) {
	s, b := newTestServer(t)
	b.state.Count = 7

	resp, body := do(t, s, "POST", "/api/sets", "")
	require.Equal(t, 201, resp.StatusCode)
	var set store.Set
	require.NoError(t, json.Unmarshal(body, &set))
	assert.Equal(t, 7, set.Reps)
	assert.Equal(t, exercise.Situps, set.Exercise)

	_, body = do(t, s, "GET", "/api/sets?limit=10", "")
	var sets []store.Set
	require.NoError(t, json.Unmarshal(body, &sets))
	assert.Len(t, sets, 1)

	resp, _ = do(t, s, "GET", "/api/sets/"+set.ID.String(), "")
	assert.Equal(t, 200, resp.StatusCode)
	resp, _ = do(t, s, "GET", "/api/sets/"+uuid.NewString(), "")
	assert.Equal(t, 404, resp.StatusCode)
	resp, _ = do(t, s, "GET", "/api/sets/not-a-uuid", "")
	assert.Equal(t, 400, resp.StatusCode)
	resp, _ = do(t, s, "GET", "/api/sets?limit=-3", "")
	assert.Equal(t, 400, resp.StatusCode)

	_, body = do(t, s, "GET", "/api/sets/totals", "")
	assert.JSONEq(t, `[]`, string(body))

	b.state.Count = 3
	_, body = do(t, s, "POST", "/api/reset", "")
	assert.Contains(t, string(body), `"count":3`)
	assert.Equal(t, 0, b.Status().Session.Count)
}

func TestAPI_SetsUnavailable(t *testing.T) {
	s, b := newTestServer(t)
	b.noStore = true
	resp, _ := do(t, s, "POST", "/api/sets", "")
	assert.Equal(t, 503, resp.StatusCode)
}

func TestAPI_Capture(t *testing.T) {
	s, _ := newTestServer(t)

	resp, body := do(t, s, "POST", "/api/capture/start", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), `"capturing":true`)

	resp, _ = do(t, s, "POST", "/api/capture/start", "")
	assert.Equal(t, 409, resp.StatusCode)

	resp, _ = do(t, s, "POST", "/api/capture/stop", "")
	assert.Equal(t, 200, resp.StatusCode)
	resp, _ = do(t, s, "POST", "/api/capture/stop", "")
	assert.Equal(t, 409, resp.StatusCode)
}

func TestAPI_Camera(t *testing.T) {
	s, _ := newTestServer(t)

	resp, body := do(t, s, "PUT", "/api/camera", `{"preset":"480p","quality":60}`)
	require.Equal(t, 200, resp.StatusCode)
	var cfg camera.Config
	require.NoError(t, json.Unmarshal(body, &cfg))
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 60, cfg.Quality)

	resp, _ = do(t, s, "PUT", "/api/camera", `{"width":5}`)
	assert.Equal(t, 400, resp.StatusCode)

	_, body = do(t, s, "GET", "/api/camera/presets", "")
	assert.Contains(t, string(body), "lowpower")
}

func TestWS_RequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t)
	resp, _ := do(t, s, "GET", "/ws/status", "")
	assert.Equal(t, 426, resp.StatusCode)
}
