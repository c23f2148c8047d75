package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/erikwilensky/codecheck/internal/middleware"
	"github.com/erikwilensky/codecheck/internal/observability"
	"github.com/erikwilensky/codecheck/internal/service"
)

// EventHandler streams assessment events to admin websocket clients.
type EventHandler struct {
	service service.EventService
	logger  zerolog.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(service service.EventService, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger.With().Str("component", "event_handler").Logger(),
	}
}

// Register binds the websocket feed under the provided router group.
func (h *EventHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := observability.WithCorrelationID(context.Background(), middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *EventHandler) handleConnection(conn *websocket.Conn) {
	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}

	h.logger.Debug().Str("correlation_id", observability.CorrelationID(ctx)).Msg("event feed client connected")
	defer func() {
		_ = conn.Close()
		h.logger.Debug().Msg("event feed client disconnected")
	}()

	h.service.ServeConnection(ctx, conn)
}
