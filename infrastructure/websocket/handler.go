package websocket

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/services"
	"context"
	"log/slog"

	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const (
	tokenLocal = "token"

	// An inline upload of the maximum size, base64 encoded, plus room for
	// the rest of the frame.
	maxFrameBytes = 8 << 20
)

// Handler upgrades HTTP requests and runs one Session per connection.
// Sessions stop when ctx is cancelled.
type Handler struct {
	ctx      context.Context
	log      *slog.Logger
	service  services.IChatService
	identity contract.IIdentity
	opts     SessionOptions
}

func NewHandler(ctx context.Context, log *slog.Logger, service services.IChatService,
	identity contract.IIdentity, opts SessionOptions) *Handler {
	return &Handler{ctx: ctx, log: log, service: service, identity: identity, opts: opts}
}

// Upgrade only lets websocket handshakes through and keeps the bearer token
// for the session.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(tokenLocal, auth.BearerToken(c))
	return c.Next()
}

func (h *Handler) Serve() fiber.Handler {
	return fiberws.New(func(c *fiberws.Conn) {
		c.SetReadLimit(maxFrameBytes)
		token, _ := c.Locals(tokenLocal).(string)
		session := NewSession(h.log, c, h.service, h.identity, token, h.opts)
		h.log.Debug("Websocket connected", "connection_id", session.ID(), "remote", c.RemoteAddr().String())
		session.Serve(h.ctx)
	})
}
