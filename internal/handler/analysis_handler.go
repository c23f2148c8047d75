package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/service"
	"github.com/erikwilensky/codecheck/internal/utils"
)

// AnalysisHandler exposes stored analyses.
type AnalysisHandler struct {
	service service.AnalysisService
	logger  zerolog.Logger
}

// NewAnalysisHandler constructs an AnalysisHandler.
func NewAnalysisHandler(service service.AnalysisService, logger zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		logger:  logger.With().Str("component", "analysis_handler").Logger(),
	}
}

// Register attaches analysis routes.
func (h *AnalysisHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

func (h *AnalysisHandler) list(c *fiber.Ctx) error {
	studentID, err := parseOptionalUintQuery(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	submissionID, err := parseOptionalUintQuery(c, "submission_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	req := dto.AnalysisListRequest{
		StudentID:    studentID,
		SubmissionID: submissionID,
		Kind:         c.Query("type"),
		Limit:        limit,
	}

	analyses, err := h.service.List(c.UserContext(), req)
	if err != nil {
		if isValidationError(err) {
			return utils.SendValidationError(c, err)
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list analyses")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list analyses")
	}

	return utils.SendSuccess(c, "analyses retrieved", analyses)
}

func (h *AnalysisHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	analysis, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrAnalysisNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "analysis not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch analysis")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch analysis")
	}

	return utils.SendSuccess(c, "analysis retrieved", analysis)
}
