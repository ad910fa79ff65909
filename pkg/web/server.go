// Package web exposes the voice pipeline over HTTP: REST endpoints for
// control and preferences, and a websocket feed of state snapshots.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/vizzilabs/go-vizzi/pkg/dispatch"
	"github.com/vizzilabs/go-vizzi/pkg/hub"
	"github.com/vizzilabs/go-vizzi/pkg/pipeline"
	"github.com/vizzilabs/go-vizzi/pkg/places"
	"github.com/vizzilabs/go-vizzi/pkg/voicepref"
)

// Pipeline is the controller surface the server drives.
type Pipeline interface {
	Start() error
	CancelOrStop()
	Snapshot() pipeline.Snapshot
}

// Actions is the dispatcher surface exposed alongside the pipeline: the
// active walking route and direct audio-space actions.
type Actions interface {
	OpenAudioSpace(name string) dispatch.Result
	ActiveRoute() *places.Route
	ClearRoute()
}

// Server is the HTTP and websocket front end.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	pipe     Pipeline
	actions  Actions
	voices   voicepref.Store
	stateHub *hub.Hub
}

// NewServer creates the server over a running pipeline controller.
func NewServer(port string, pipe Pipeline, actions Actions, voices voicepref.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:     port,
		logger:   logger.With("component", "web"),
		pipe:     pipe,
		actions:  actions,
		voices:   voices,
		stateHub: hub.New("state", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Vizzi",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Get("/voices", s.handleListVoices)
	api.Put("/voice", s.handleSetVoice)
	api.Get("/route", s.handleActiveRoute)
	api.Delete("/route", s.handleClearRoute)
	api.Post("/spaces/open", s.handleOpenSpace)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	s.app = app
	return s
}

// PublishState broadcasts a pipeline snapshot to websocket observers.
// Wire it as the pipeline's change callback.
func (s *Server) PublishState(snap pipeline.Snapshot) {
	if err := s.stateHub.BroadcastJSON(snap); err != nil {
		s.logger.Warn("state broadcast failed", "err", err)
	}
}

// Start runs the server. It blocks until Shutdown.
func (s *Server) Start() error {
	go s.stateHub.Run()
	s.logger.Info("listening", "addr", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown gracefully stops the server and disconnects observers.
func (s *Server) Shutdown() error {
	s.stateHub.Stop()
	return s.app.Shutdown()
}
