// Package web serves the voice-chat page, its JSON API and per-session
// websocket event streams.
package web

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-voicechat/pkg/session"
)

//go:embed static/index.html
var indexHTML []byte

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// BodyLimit caps uploaded recordings in bytes.
	BodyLimit int

	// HealthChecks run on GET /api/health?deep=1.
	HealthChecks []HealthCheck

	Logger *slog.Logger
}

// HealthChecker is satisfied by every stt, inference and tts provider.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheck names a provider for the health report.
type HealthCheck struct {
	Name    string
	Checker HealthChecker
}

// Option is a functional option for configuring the server.
type Option func(*Config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Addr = addr
	}
}

// WithBodyLimit caps request bodies.
func WithBodyLimit(n int) Option {
	return func(c *Config) {
		c.BodyLimit = n
	}
}

// WithHealthCheck adds a provider to the deep health check.
func WithHealthCheck(name string, checker HealthChecker) Option {
	return func(c *Config) {
		c.HealthChecks = append(c.HealthChecks, HealthCheck{Name: name, Checker: checker})
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:      ":8080",
		BodyLimit: 25 * 1024 * 1024, // Whisper's upload limit
		Logger:    slog.Default(),
	}
}

// Server is the voice-chat HTTP server.
type Server struct {
	app      *fiber.App
	config   *Config
	sessions *session.Manager
	logger   *slog.Logger
}

// NewServer creates a server routing requests to sessions.
func NewServer(sessions *session.Manager, opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		sessions: sessions,
		logger:   cfg.Logger.With("component", "web.server"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Voice Chat",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(s.accessLog)

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Post("/sessions", s.handleCreateSession)

	api.Delete("/sessions/:id", s.lookupSession, s.handleDeleteSession)
	api.Post("/sessions/:id/audio", s.lookupSession, s.handleAudio)
	api.Post("/sessions/:id/text", s.lookupSession, s.handleText)
	api.Post("/sessions/:id/idle", s.lookupSession, s.handleIdle)
	api.Get("/sessions/:id/transcript", s.lookupSession, s.handleTranscript)
	api.Get("/sessions/:id/turns/:index/audio", s.lookupSession, s.handleTurnAudio)
	api.Get("/sessions/:id/metrics", s.lookupSession, s.handleMetrics)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id", s.lookupSession, websocket.New(s.handleSessionWS))

	s.app = app
	return s
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address and blocks.
func (s *Server) Start() error {
	s.logger.Info("web server listening", "addr", s.config.Addr)
	return s.app.Listen(s.config.Addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// handleError renders every error as {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency", time.Since(start),
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
	)
	return err
}
