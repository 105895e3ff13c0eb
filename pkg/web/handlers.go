package web

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/hub"
	"github.com/teslashibe/fitview/pkg/store"
)

// ExerciseInfo describes a selectable exercise
type ExerciseInfo struct {
	Name        string `json:"name"`
	Implemented bool   `json:"implemented"`
	Selected    bool   `json:"selected"`
}

// SelectExerciseRequest is the request body for PUT /api/exercise
type SelectExerciseRequest struct {
	Exercise string `json:"exercise"`
}

// handleError maps backend errors to status codes.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, exercise.ErrUnknownKind):
		code = fiber.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, ErrConflict):
		code = fiber.StatusConflict
	case errors.Is(err, ErrUnavailable):
		code = fiber.StatusServiceUnavailable
	}

	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// handleStatus returns the current dashboard status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.backend.Status())
}

// handleListExercises returns every exercise and which one is selected
func (s *Server) handleListExercises(c *fiber.Ctx) error {
	selected := s.backend.Status().Session.Exercise
	out := make([]ExerciseInfo, 0, len(exercise.All()))
	for _, k := range exercise.All() {
		out = append(out, ExerciseInfo{
			Name:        k.String(),
			Implemented: k.Implemented(),
			Selected:    k == selected,
		})
	}
	return c.JSON(out)
}

func (s *Server) handleSelectExercise(c *fiber.Ctx) error {
	var req SelectExerciseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	kind, err := exercise.ParseKind(req.Exercise)
	if err != nil {
		return err
	}
	state, err := s.backend.SelectExercise(kind)
	if err != nil {
		return err
	}
	return c.JSON(state)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	prev := s.backend.ResetCount()
	return c.JSON(fiber.Map{"previous": prev})
}

// handleFinishSet records the current count as a set and resets it
func (s *Server) handleFinishSet(c *fiber.Ctx) error {
	set, err := s.backend.FinishSet(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(set)
}

func (s *Server) handleListSets(c *fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	sets, err := s.backend.Sets(c.UserContext(), limit)
	if err != nil {
		return err
	}
	if sets == nil {
		sets = []store.Set{}
	}
	return c.JSON(sets)
}

func (s *Server) handleGetSet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid set id")
	}
	set, err := s.backend.Set(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(set)
}

func (s *Server) handleTotals(c *fiber.Ctx) error {
	totals, err := s.backend.Totals(c.UserContext())
	if err != nil {
		return err
	}
	if totals == nil {
		totals = []store.Total{}
	}
	return c.JSON(totals)
}

func (s *Server) handleStartCapture(c *fiber.Ctx) error {
	if err := s.backend.StartCapture(); err != nil {
		return err
	}
	return c.JSON(s.backend.Status())
}

func (s *Server) handleStopCapture(c *fiber.Ctx) error {
	if err := s.backend.StopCapture(); err != nil {
		return err
	}
	return c.JSON(s.backend.Status())
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(s.backend.CameraConfig())
}

// handleUpdateCamera applies a partial camera config, optionally starting
// from a preset
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	params := make(map[string]any)
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.backend.UpdateCamera(params); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable) {
			return err
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.backend.CameraConfig())
}

func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.PresetNames())
}

// handleStatusWS sends the current status, then live state updates
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if err := c.WriteJSON(hub.Envelope{Type: hub.TypeStatus, Data: s.backend.Status()}); err != nil {
		return
	}
	if client := hub.NewClient(s.statusHub, c); client != nil {
		client.Run()
	}
}

// handleCameraWS streams preview JPEG frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	if client := hub.NewClient(s.cameraHub, c); client != nil {
		client.Run()
	}
}
