package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhu-collab/coursechat-api/internal/models"
	"github.com/jhu-collab/coursechat-api/internal/services"
)

// AssistantHandler exposes the assistant catalog.
type AssistantHandler struct {
	assistants *services.AssistantService
}

// NewAssistantHandler creates an AssistantHandler.
func NewAssistantHandler(assistants *services.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistants: assistants}
}

// List handles GET /api/assistants.
func (h *AssistantHandler) List(c *fiber.Ctx) error {
	assistants, err := h.assistants.List(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	if assistants == nil {
		assistants = []*models.Assistant{}
	}
	return c.JSON(fiber.Map{"assistants": assistants})
}

// Get handles GET /api/assistants/:name.
func (h *AssistantHandler) Get(c *fiber.Ctx) error {
	assistant, err := h.assistants.Get(c.Context(), c.Params("name"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(assistant)
}
