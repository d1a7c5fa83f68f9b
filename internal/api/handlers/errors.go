package handlers

import (
	"errors"

	"recanalysis/internal/dto"
	"recanalysis/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// statusFor maps the service error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	var (
		unsupported *service.UnsupportedFormatError
		formType    *service.InvalidFormTypeError
		notFound    *service.NotFoundError
		notReady    *service.JobNotReadyError
		rendering   *service.RenderingError
	)
	switch {
	case errors.As(err, &unsupported), errors.As(err, &formType):
		return fiber.StatusBadRequest
	case errors.As(err, &notFound):
		return fiber.StatusNotFound
	case errors.As(err, &notReady):
		return fiber.StatusConflict
	case errors.As(err, &rendering):
		if rendering.StatusCode != 0 {
			return rendering.StatusCode
		}
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}

func isNotFound(err error) bool {
	var notFound *service.NotFoundError
	return errors.As(err, &notFound)
}

func (h *AnalysisHandler) respondError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", utils.CopyString(c.Path())),
			zap.Int("status", code),
			zap.Error(err),
		)
	}

	msg := err.Error()
	var rendering *service.RenderingError
	if errors.As(err, &rendering) && rendering.Detail != "" {
		msg = rendering.Detail
	}
	return c.Status(code).JSON(dto.ErrorResponse{Error: msg})
}
