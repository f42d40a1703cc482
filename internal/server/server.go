package server

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/models"
	"document-qa/internal/rag"
)

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	rag      *rag.RAG
	sessions *rag.SessionStore
	validate *validator.Validate
}

func New(cfg *config.Config, r *rag.RAG, sessions *rag.SessionStore) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CorsOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, " + models.SessionHeader,
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(requestLogger())

	s := &Server{
		app:      app,
		cfg:      cfg,
		rag:      r,
		sessions: sessions,
		validate: validator.New(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Info().Str("addr", s.cfg.Server.Addr).Msg("Server is running")
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.health)
	s.app.Post("/upload_pdf", s.uploadText)
	s.app.Post("/upload_file", s.uploadFile)
	s.app.Post("/ask", s.ask)
	s.app.Post("/clear_pdf", s.clear)
}

// errorHandler renders every error as {"detail": "..."}
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	detail := err.Error()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		detail = fe.Message
	}
	return c.Status(code).JSON(models.ErrorResponse{Detail: detail})
}

func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error().Err(err)
		case status >= 400:
			ev = log.Warn()
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Request")
		return err
	}
}
