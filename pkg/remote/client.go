// Package remote receives landmark frames computed on another device, such
// as a phone running the 3D body pose model, over a websocket.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/fitview/pkg/camera"
)

// Client reads one landmark frame per websocket message. It implements
// camera.Source; each Frame's Data holds the raw JSON payload for Decoder.
type Client struct {
	url  string
	ws   *websocket.Conn
	wsMu sync.Mutex
	log  *slog.Logger

	seq    uint64
	closed bool
}

// Dial connects to a landmark stream.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: connect %s: %w", url, err)
	}

	ws.SetPingHandler(func(appData string) error {
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	logger.Info("landmark stream connected", "url", url)
	return &Client{url: url, ws: ws, log: logger}, nil
}

// Next blocks for the next message. A normal close from the sender ends
// the stream with io.EOF. Cancelling ctx interrupts the read; the
// connection is unusable afterwards.
func (c *Client) Next(ctx context.Context) (camera.Frame, error) {
	if err := ctx.Err(); err != nil {
		return camera.Frame{}, err
	}

	stop := context.AfterFunc(ctx, func() {
		c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return camera.Frame{}, ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info("landmark stream closed by sender", "url", c.url)
				return camera.Frame{}, io.EOF
			}
			c.wsMu.Lock()
			closed := c.closed
			c.wsMu.Unlock()
			if closed || errors.Is(err, websocket.ErrCloseSent) {
				return camera.Frame{}, io.EOF
			}
			return camera.Frame{}, fmt.Errorf("remote: read: %w", err)
		}
		if kind != websocket.TextMessage {
			c.log.Debug("ignoring non-text message", "type", kind)
			continue
		}

		f := camera.Frame{
			Seq:  c.seq,
			Time: time.Now(),
			Data: data,
		}
		c.seq++
		return f, nil
	}
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}
