package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/erikwilensky/codecheck/internal/service"
	"github.com/erikwilensky/codecheck/internal/utils"
)

// AdminOverviewHandler exposes the dashboard summary for administrators.
type AdminOverviewHandler struct {
	service service.AdminOverviewService
	logger  zerolog.Logger
}

// NewAdminOverviewHandler constructs the handler.
func NewAdminOverviewHandler(service service.AdminOverviewService, logger zerolog.Logger) *AdminOverviewHandler {
	return &AdminOverviewHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_overview_handler").Logger(),
	}
}

// Register attaches overview routes to the router group.
func (h *AdminOverviewHandler) Register(router fiber.Router) {
	router.Get("", h.get)
}

func (h *AdminOverviewHandler) get(c *fiber.Ctx) error {
	summary, err := h.service.GetSummary(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch overview")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load overview")
	}

	return utils.SendSuccess(c, "overview summary", summary)
}
