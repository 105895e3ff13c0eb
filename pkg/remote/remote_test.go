package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/fitview/internal/log"
	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/detection"
	"github.com/teslashibe/fitview/pkg/pose"
	"gonum.org/v1/gonum/spatial/r3"
)

func landmarkJSON(t *testing.T, head float64) []byte {
	t.Helper()
	f, err := pose.NewFrame(99, time.Unix(5, 0), []pose.Landmark{
		{Joint: pose.CenterHead, Position: r3.Vec{Y: head}},
		{Joint: pose.LeftKnee, Position: r3.Vec{X: -0.1}},
		{Joint: pose.RightKnee, Position: r3.Vec{X: 0.1}},
	})
	require.NoError(t, err)
	data, err := json.Marshal(f)
	require.NoError(t, err)
	return data
}

// serve starts a websocket server that sends msgs and then closes normally.
func serve(t *testing.T, msgs [][]byte, hold <-chan struct{}) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.BinaryMessage, []byte{0x1})
		for _, m := range msgs {
			if err := ws.WriteMessage(websocket.TextMessage, m); err != nil {
				return
			}
		}
		if hold != nil {
			<-hold
		}
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_StreamsFrames(t *testing.T) {
	url := serve(t, [][]byte{landmarkJSON(t, 0.7), landmarkJSON(t, 0.4)}, nil)

	ctx := context.Background()
	c, err := Dial(ctx, url, log.Discard())
	require.NoError(t, err)
	defer c.Close()

	var dec Decoder
	for i, want := range []float64{0.7, 0.4} {
		f, err := c.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), f.Seq)

		pf, err := dec.Detect(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), pf.Seq(), "camera sequence wins over the payload")

		head, err := pf.Point(pose.CenterHead)
		require.NoError(t, err)
		assert.InDelta(t, want, head.Y, 1e-12)
	}

	_, err = c.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestClient_CancelInterruptsRead(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	url := serve(t, nil, hold)

	c, err := Dial(context.Background(), url, log.Discard())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Next(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestDial_Refused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws://127.0.0.1:1/landmarks", log.Discard())
	assert.Error(t, err)
}

func TestDecoder(t *testing.T) {
	var dec Decoder
	ctx := context.Background()

	_, err := dec.Detect(ctx, camera.Frame{Data: []byte(`{"seq":1,"landmarks":[]}`)})
	assert.ErrorIs(t, err, detection.ErrNoPose)

	_, err = dec.Detect(ctx, camera.Frame{Data: []byte(`not json`)})
	assert.Error(t, err)

	dup := `{"landmarks":[{"name":"human_root_3D"},{"name":"human_root_3D"}]}`
	_, err = dec.Detect(ctx, camera.Frame{Data: []byte(dup)})
	assert.ErrorIs(t, err, pose.ErrDuplicateJoint)
}
