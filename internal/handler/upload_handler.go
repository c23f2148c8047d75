package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/service"
	"github.com/erikwilensky/codecheck/internal/utils"
)

// UploadHandler handles code submissions from students.
type UploadHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an UploadHandler.
func NewUploadHandler(service service.SubmissionService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register attaches upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("/code", h.upload)
	router.Get("/submissions/:studentId", h.listByStudent)
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	var payload dto.UploadSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid form payload")
	}

	// The file part is optional; pasted code arrives as a form field instead.
	file, err := c.FormFile("file")
	if err != nil {
		file = nil
	}

	submission, err := h.service.Upload(c.UserContext(), payload, file)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendValidationError(c, err)
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrAssignmentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		case errors.Is(err, service.ErrStudentInactive):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrNoContent), errors.Is(err, service.ErrUnsupportedContent):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUploadTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to store submission")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to store submission")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "code uploaded successfully", submission)
}

func (h *UploadHandler) listByStudent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	submissions, err := h.service.ListByStudent(c.UserContext(), studentID)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}
