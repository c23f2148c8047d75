package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/service"
	"github.com/erikwilensky/codecheck/internal/utils"
)

// AdminSessionHandler exchanges the admin secret for a session token.
type AdminSessionHandler struct {
	service service.AdminSessionService
	logger  zerolog.Logger
}

// NewAdminSessionHandler constructs the handler.
func NewAdminSessionHandler(service service.AdminSessionService, logger zerolog.Logger) *AdminSessionHandler {
	return &AdminSessionHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_session_handler").Logger(),
	}
}

// Register attaches the session route behind the given route middlewares.
func (h *AdminSessionHandler) Register(router fiber.Router, middlewares ...fiber.Handler) {
	handlers := append(middlewares, h.create)
	router.Post("/session", handlers...)
}

func (h *AdminSessionHandler) create(c *fiber.Ctx) error {
	var payload dto.AdminSessionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	session, err := h.service.CreateSession(c.UserContext(), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendValidationError(c, err)
		case errors.Is(err, service.ErrInvalidAdminSecret):
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid admin password")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to create admin session")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create admin session")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "admin session created", session)
}
