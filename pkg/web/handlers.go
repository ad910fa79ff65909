package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/vizzilabs/go-vizzi/pkg/capture"
	"github.com/vizzilabs/go-vizzi/pkg/hardware"
	"github.com/vizzilabs/go-vizzi/pkg/hub"
	"github.com/vizzilabs/go-vizzi/pkg/pipeline"
	"github.com/vizzilabs/go-vizzi/pkg/transcribe"
	"github.com/vizzilabs/go-vizzi/pkg/tts"
)

// handleState returns the current pipeline snapshot.
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.pipe.Snapshot())
}

// handleStart begins a new voice interaction.
func (s *Server) handleStart(c *fiber.Ctx) error {
	err := s.pipe.Start()
	switch {
	case err == nil:
		return c.JSON(s.pipe.Snapshot())
	case errors.Is(err, pipeline.ErrNotIdle), errors.Is(err, hardware.ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, capture.ErrPermissionDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, transcribe.ErrEngineUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// handleStop cancels whatever the pipeline is doing.
func (s *Server) handleStop(c *fiber.Ctx) error {
	s.pipe.CancelOrStop()
	return c.JSON(s.pipe.Snapshot())
}

// VoicesResponse lists the available voices and the active selection.
type VoicesResponse struct {
	Voices  []string `json:"voices"`
	Current string   `json:"current"`
}

// handleListVoices returns the voice catalog.
func (s *Server) handleListVoices(c *fiber.Ctx) error {
	return c.JSON(VoicesResponse{
		Voices:  tts.Voices,
		Current: s.voices.Get(),
	})
}

// SetVoiceRequest is the body for PUT /api/voice.
type SetVoiceRequest struct {
	Voice string `json:"voice"`
}

// handleSetVoice updates the persisted voice preference.
func (s *Server) handleSetVoice(c *fiber.Ctx) error {
	var req SetVoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := s.voices.Set(req.Voice); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"voice": s.voices.Get()})
}

// handleActiveRoute returns the walking route of the last navigation.
func (s *Server) handleActiveRoute(c *fiber.Ctx) error {
	route := s.actions.ActiveRoute()
	if route == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active route"})
	}
	return c.JSON(route)
}

// handleClearRoute drops the active route.
func (s *Server) handleClearRoute(c *fiber.Ctx) error {
	s.actions.ClearRoute()
	return c.SendStatus(fiber.StatusNoContent)
}

// OpenSpaceRequest is the body for POST /api/spaces/open.
type OpenSpaceRequest struct {
	Name string `json:"name"`
}

// handleOpenSpace dispatches an audio-space action by name.
func (s *Server) handleOpenSpace(c *fiber.Ctx) error {
	var req OpenSpaceRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name required"})
	}
	res := s.actions.OpenAudioSpace(req.Name)
	return c.JSON(fiber.Map{"spoken": res.Spoken})
}

// handleStateWS streams state snapshots to a websocket observer.
func (s *Server) handleStateWS(c *websocket.Conn) {
	// Seed the connection with the current snapshot; later updates come
	// through the hub.
	c.WriteJSON(s.pipe.Snapshot())
	hub.NewClient(s.stateHub, c).Run()
}
