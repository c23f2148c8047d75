package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/erikwilensky/codecheck/internal/service"
	"github.com/erikwilensky/codecheck/internal/utils"
)

// WebhookHandler receives repository push deliveries.
type WebhookHandler struct {
	service service.WebhookService
	logger  zerolog.Logger
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(service service.WebhookService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.With().Str("component", "webhook_handler").Logger(),
	}
}

// Register attaches webhook routes.
func (h *WebhookHandler) Register(router fiber.Router) {
	router.Post("/github", h.github)
}

func (h *WebhookHandler) github(c *fiber.Ctx) error {
	event := c.Get("X-GitHub-Event")
	signature := c.Get("X-Hub-Signature-256")

	// fasthttp reuses the body buffer once the handler returns.
	body := append([]byte(nil), c.Body()...)

	result, err := h.service.Handle(c.UserContext(), event, signature, body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid signature")
		case errors.Is(err, service.ErrInvalidPayload):
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("event", event).Msg("failed to process webhook")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to process webhook")
		}
	}

	return utils.SendSuccess(c, "webhook "+result.Status, result)
}
