package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/erikwilensky/codecheck/internal/service"
	"github.com/erikwilensky/codecheck/internal/utils"
)

// AdminQuizPDFHandler manages rendered quiz packets.
type AdminQuizPDFHandler struct {
	service service.QuizPDFService
	logger  zerolog.Logger
}

// NewAdminQuizPDFHandler constructs the handler.
func NewAdminQuizPDFHandler(service service.QuizPDFService, logger zerolog.Logger) *AdminQuizPDFHandler {
	return &AdminQuizPDFHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_quiz_pdf_handler").Logger(),
	}
}

// Register attaches quiz packet routes.
func (h *AdminQuizPDFHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Delete("", h.deleteAll)
	router.Get("/:id/download", h.download)
	router.Delete("/:id", h.delete)
}

func (h *AdminQuizPDFHandler) list(c *fiber.Ctx) error {
	packets, err := h.service.List(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list quiz pdfs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list quiz pdfs")
	}
	return utils.SendSuccess(c, "quiz pdfs retrieved", packets)
}

func (h *AdminQuizPDFHandler) download(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	file, err := h.service.Download(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrQuizPDFNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "quiz pdf not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load quiz pdf")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load quiz pdf")
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.FileName))
	return c.Send(file.Data)
}

func (h *AdminQuizPDFHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if err := h.service.Delete(c.UserContext(), id, activityActorFromContext(c)); err != nil {
		if errors.Is(err, service.ErrQuizPDFNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "quiz pdf not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete quiz pdf")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete quiz pdf")
	}
	return utils.SendSuccess(c, "quiz pdf deleted", fiber.Map{"id": id})
}

func (h *AdminQuizPDFHandler) deleteAll(c *fiber.Ctx) error {
	deleted, err := h.service.DeleteAll(c.UserContext(), activityActorFromContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete quiz pdfs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete quiz pdfs")
	}
	return utils.SendSuccess(c, "quiz pdfs deleted", fiber.Map{"deleted": deleted})
}
