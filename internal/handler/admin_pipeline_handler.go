package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/erikwilensky/codecheck/internal/assessment"
	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/service"
	"github.com/erikwilensky/codecheck/internal/utils"
	"github.com/erikwilensky/codecheck/pkg/ai"
)

// AdminPipelineHandler triggers analysis and quiz generation on demand.
type AdminPipelineHandler struct {
	analyses service.AnalysisService
	quizzes  service.QuizService
	bulk     service.BulkQuizService
	logger   zerolog.Logger
}

// NewAdminPipelineHandler constructs the handler.
func NewAdminPipelineHandler(analyses service.AnalysisService, quizzes service.QuizService, bulk service.BulkQuizService, logger zerolog.Logger) *AdminPipelineHandler {
	return &AdminPipelineHandler{
		analyses: analyses,
		quizzes:  quizzes,
		bulk:     bulk,
		logger:   logger.With().Str("component", "admin_pipeline_handler").Logger(),
	}
}

// Register attaches pipeline routes.
func (h *AdminPipelineHandler) Register(router fiber.Router) {
	router.Post("/submissions/:id/analyze", h.analyze)
	router.Post("/submissions/:id/analyze/heuristic", h.analyzeHeuristic)
	router.Post("/submissions/:id/quiz", h.quiz)
	router.Post("/generate-quiz", h.generateQuiz)
}

func (h *AdminPipelineHandler) analyze(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	analysis, err := h.analyses.RunAnalysis(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err, "analysis failed")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "analysis completed", analysis)
}

func (h *AdminPipelineHandler) analyzeHeuristic(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	analysis, err := h.analyses.RunHeuristicAnalysis(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err, "heuristic analysis failed")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "heuristic analysis completed", analysis)
}

func (h *AdminPipelineHandler) quiz(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	analysisID, err := parseOptionalUintQuery(c, "analysis_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	quiz, err := h.quizzes.RunQuizGeneration(c.UserContext(), id, analysisID)
	if err != nil {
		return h.handleError(c, err, "quiz generation failed")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "quiz generated", quiz)
}

func (h *AdminPipelineHandler) generateQuiz(c *fiber.Ctx) error {
	var payload dto.BulkQuizRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	// Form posts may carry the ids as one comma separated field.
	if len(payload.StudentIDs) == 0 && c.FormValue("student_ids") != "" {
		ids, err := parseUintList(c.FormValue("student_ids"))
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		payload.StudentIDs = ids
	}
	payload.GeneratedBy = activityActorFromContext(c).Name

	result, err := h.bulk.Generate(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err, "quiz packet generation failed")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "quiz packet generated", result)
}

func (h *AdminPipelineHandler) handleError(c *fiber.Ctx, err error, message string) error {
	switch {
	case isValidationError(err):
		return utils.SendValidationError(c, err)
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrAnalysisNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "analysis not found")
	case errors.Is(err, service.ErrNoSubmissions):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, ai.ErrProviderUnconfigured):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "generation provider is not configured")
	case errors.Is(err, ai.ErrProviderCallFailed),
		errors.Is(err, ai.ErrSchemaMismatch),
		errors.Is(err, assessment.ErrResponseParse):
		requestLogger(h.logger, c).Warn().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusBadGateway, message+": "+err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return utils.SendError(c, fiber.StatusGatewayTimeout, message)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
