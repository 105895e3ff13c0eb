// Package web serves the rep counter's REST API and live websocket feeds.
package web

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/hub"
	"github.com/teslashibe/fitview/pkg/pipeline"
	"github.com/teslashibe/fitview/pkg/session"
	"github.com/teslashibe/fitview/pkg/store"
)

// Backend errors mapped to HTTP status codes.
var (
	ErrConflict    = errors.New("web: conflict")
	ErrUnavailable = errors.New("web: unavailable")
)

// Status is the dashboard snapshot.
type Status struct {
	Session   session.State  `json:"session"`
	Capturing bool           `json:"capturing"`
	Source    string         `json:"source"`
	Pipeline  pipeline.Stats `json:"pipeline"`
}

// Backend is what the server drives.
type Backend interface {
	Status() Status
	SelectExercise(kind exercise.Kind) (session.State, error)
	ResetCount() session.State
	FinishSet(ctx context.Context) (store.Set, error)
	Sets(ctx context.Context, limit int) ([]store.Set, error)
	Set(ctx context.Context, id uuid.UUID) (store.Set, error)
	Totals(ctx context.Context) ([]store.Total, error)
	StartCapture() error
	StopCapture() error
	CameraConfig() camera.Config
	UpdateCamera(params map[string]any) error
}

// Server is the web API server
type Server struct {
	app     *fiber.App
	addr    string
	backend Backend
	log     *slog.Logger

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	cameraHub *hub.Hub
}

// NewServer creates the API server listening on addr.
func NewServer(addr string, backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:      addr,
		backend:   backend,
		log:       logger,
		statusHub: hub.New("status", logger),
		cameraHub: hub.New("camera", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "fitview",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/exercises", s.handleListExercises)
	api.Put("/exercise", s.handleSelectExercise)
	api.Post("/reset", s.handleReset)
	api.Get("/sets", s.handleListSets)
	api.Post("/sets", s.handleFinishSet)
	api.Get("/sets/totals", s.handleTotals)
	api.Get("/sets/:id", s.handleGetSet)
	api.Post("/capture/start", s.handleStartCapture)
	api.Post("/capture/stop", s.handleStopCapture)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)
	api.Get("/camera/presets", s.handleCameraPresets)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App exposes the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs and serves until Shutdown. The hubs stop with ctx.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	s.log.Info("web api listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// PublishState broadcasts a session state to status clients.
func (s *Server) PublishState(st session.State) {
	if err := s.statusHub.Publish(hub.TypeState, st); err != nil {
		s.log.Warn("encode state", "err", err)
	}
}

// PublishStatus broadcasts the full status to status clients.
func (s *Server) PublishStatus(st Status) {
	if err := s.statusHub.Publish(hub.TypeStatus, st); err != nil {
		s.log.Warn("encode status", "err", err)
	}
}

// SendCameraFrame sends a preview frame to all camera clients
func (s *Server) SendCameraFrame(jpegData []byte) {
	s.cameraHub.BroadcastBinary(jpegData)
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
