package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"planpact/internal/logging"
	"planpact/internal/service"
)

// errorHandler maps service errors onto HTTP statuses.
func errorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			status = fe.Code
			message = fe.Message
		case errors.Is(err, service.ErrNotFound):
			status = fiber.StatusNotFound
			message = err.Error()
		case errors.Is(err, service.ErrAccessDenied):
			status = fiber.StatusForbidden
			message = "Access denied"
		case errors.Is(err, service.ErrValidation):
			status = fiber.StatusBadRequest
			message = err.Error()
		default:
			logging.ReportError(log.WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}), "http_handler", err)
		}
		return c.Status(status).JSON(fiber.Map{"error": message})
	}
}
