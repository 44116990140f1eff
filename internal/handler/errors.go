package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-studyplan-api/internal/service"
	"github.com/noah-isme/gema-studyplan-api/internal/utils"
)

// Machine readable error codes returned in the details of failed responses.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeEmptyRecipientSet = "EMPTY_RECIPIENT_SET"
	CodeNotFound          = "NOT_FOUND"
	CodeInternal          = "INTERNAL"
)

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// classify maps an engine error onto an HTTP status and error code.
func classify(err error) (int, string) {
	var fiberErr *fiber.Error
	switch {
	case isValidationError(err), errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest, CodeValidation
	case errors.As(err, &fiberErr) && fiberErr.Code == fiber.StatusBadRequest:
		return fiber.StatusBadRequest, CodeValidation
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden, CodeForbidden
	case errors.Is(err, service.ErrInvalidTransition):
		return fiber.StatusConflict, CodeInvalidTransition
	case errors.Is(err, service.ErrEmptyRecipientSet):
		return fiber.StatusUnprocessableEntity, CodeEmptyRecipientSet
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound, CodeNotFound
	default:
		return fiber.StatusInternalServerError, CodeInternal
	}
}

// respondError writes the error envelope. Internal failures are logged and
// their message is replaced with fallback.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	status, code := classify(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		message = fallback
	}

	details := fiber.Map{"code": code}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string, len(validationErrors))
		for _, fieldErr := range validationErrors {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
		details["fields"] = fields
		message = "invalid payload"
	}

	return utils.Fail(c, status, message, details)
}

func badRequest(c *fiber.Ctx, message string) error {
	return utils.Fail(c, fiber.StatusBadRequest, message, fiber.Map{"code": CodeValidation})
}
