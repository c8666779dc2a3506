package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhu-collab/coursechat-api/internal/middleware"
	"github.com/jhu-collab/coursechat-api/internal/models"
	"github.com/jhu-collab/coursechat-api/internal/services"
)

// ConversationHandler exposes the turn-oriented conversation endpoints.
type ConversationHandler struct {
	conversations *services.ConversationService
}

// NewConversationHandler creates a ConversationHandler.
func NewConversationHandler(conversations *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// Start handles POST /api/conversations: create a chat and run the first
// turn in one call.
func (h *ConversationHandler) Start(c *fiber.Ctx) error {
	var req models.StartConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.conversations.Start(c.Context(), req, middleware.KeyID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Continue handles POST /api/conversations/:chatId.
func (h *ConversationHandler) Continue(c *fiber.Ctx) error {
	var req models.ContinueConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.conversations.Continue(c.Context(), c.Params("chatId"), req.Message,
		middleware.KeyID(c), middleware.IsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}
