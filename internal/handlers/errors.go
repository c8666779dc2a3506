package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhu-collab/coursechat-api/internal/models"
)

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		status = fiber.StatusUnauthorized
	case errors.Is(err, models.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, models.ErrGenerationFailed):
		// Provider detail stays in the server log; clients get a
		// generic message.
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to continue conversation",
		})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
