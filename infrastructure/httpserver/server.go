// Package httpserver exposes the chat over HTTP: the websocket endpoint,
// attachment uploads, metrics and liveness.
package httpserver

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/infrastructure/websocket"
	"chat-relay/observability"
	"chat-relay/services"
	"chat-relay/storage"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// multipartOverhead leaves room for form boundaries and headers around an
// upload of the maximum size.
const multipartOverhead = 1 << 20

type Dependencies struct {
	Service        services.IChatService
	Identity       contract.IIdentity
	Blobs          contract.IBlobStore
	UploadDir      string
	MaxUploadBytes int
	Metrics        *observability.Metrics
	Sockets        *websocket.Handler
}

type Server struct {
	log  *slog.Logger
	app  *fiber.App
	deps Dependencies
}

func NewServer(log *slog.Logger, deps Dependencies) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = storage.DefaultMaxUploadBytes
	}
	s := &Server{
		log:  log,
		deps: deps,
		app: fiber.New(fiber.Config{
			AppName:               "chat-relay",
			DisableStartupMessage: true,
			BodyLimit:             deps.MaxUploadBytes + multipartOverhead,
		}),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(recover.New())

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/rooms", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"rooms": s.deps.Service.Rooms()})
	})
	if s.deps.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.deps.Metrics.Handler()))
	}
	s.app.Post("/uploads", auth.RequireIdentity(s.deps.Identity), s.upload)
	s.app.Static(storage.UploadsPath, s.deps.UploadDir)

	if s.deps.Sockets != nil {
		s.app.Use("/ws", s.deps.Sockets.Upgrade)
		s.app.Get("/ws", s.deps.Sockets.Serve())
	}
}

// upload stores the "file" form field and answers with its URL, to be sent
// as attachment_url in a later send_message.
func (s *Server) upload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return fail(c, fmt.Errorf("%w: file field is required", errors.ErrValidation))
	}
	if header.Size > int64(s.deps.MaxUploadBytes) {
		return fail(c, errors.ErrFileTooLarge)
	}
	file, err := header.Open()
	if err != nil {
		return fail(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, int64(s.deps.MaxUploadBytes)+1))
	if err != nil {
		return fail(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
	}
	url, err := s.deps.Blobs.Put(c.UserContext(), data, header.Header.Get(fiber.HeaderContentType))
	if err != nil {
		s.log.Debug("Upload rejected", "user", auth.UserFrom(c), "error", err)
		return fail(c, err)
	}
	s.log.Info("Upload stored", "user", auth.UserFrom(c), "url", url)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}

func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case stderrors.Is(err, errors.ErrFileTooLarge):
		status = fiber.StatusRequestEntityTooLarge
	case errors.IsValidation(err):
		status = fiber.StatusBadRequest
	case errors.IsPersistence(err):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"code": errors.Code(err), "message": err.Error()})
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.log.Info("Starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
