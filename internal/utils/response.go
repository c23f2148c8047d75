package utils

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/erikwilensky/codecheck/internal/observability"
)

// APIResponse is the envelope every codecheck endpoint returns.
type APIResponse struct {
	Success       bool         `json:"success"`
	Data          interface{}  `json:"data,omitempty"`
	Message       string       `json:"message"`
	Errors        []FieldError `json:"errors,omitempty"`
	CorrelationID string       `json:"correlation_id,omitempty"`
}

// FieldError names a request field that failed validation and the rule it broke.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// SendSuccess sends a 200 envelope.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success envelope with the given status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success:       true,
		Data:          data,
		Message:       message,
		CorrelationID: c.GetRespHeader(observability.CorrelationHeader),
	})
}

// SendError sends an error envelope. The correlation id lets an operator find the
// matching log lines.
func SendError(c *fiber.Ctx, status int, message string) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(APIResponse{
		Success:       false,
		Message:       message,
		CorrelationID: c.GetRespHeader(observability.CorrelationHeader),
	})
}

// SendValidationError reports request validation failures as 400 with one entry per
// failing field. Other errors fall back to their message.
func SendValidationError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return SendError(c, fiber.StatusBadRequest, err.Error())
	}

	fields := make([]FieldError, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, FieldError{Field: fieldErr.Field(), Rule: fieldErr.Tag(), Param: fieldErr.Param()})
	}

	return c.Status(fiber.StatusBadRequest).JSON(APIResponse{
		Success:       false,
		Message:       "validation failed",
		Errors:        fields,
		CorrelationID: c.GetRespHeader(observability.CorrelationHeader),
	})
}
