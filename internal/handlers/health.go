package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhu-collab/coursechat-api/internal/database"
)

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	db *database.DB
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db *database.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check reports service health including database reachability.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.db.PingContext(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "degraded",
			"database": "unreachable",
		})
	}

	return c.JSON(fiber.Map{
		"status":   "healthy",
		"database": "ok",
	})
}
