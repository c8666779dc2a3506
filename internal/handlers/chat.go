package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhu-collab/coursechat-api/internal/middleware"
	"github.com/jhu-collab/coursechat-api/internal/models"
	"github.com/jhu-collab/coursechat-api/internal/services"
)

// ChatHandler exposes chat and transcript management.
type ChatHandler struct {
	chats         *services.ChatService
	messages      *services.MessageService
	conversations *services.ConversationService
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chats *services.ChatService, messages *services.MessageService, conversations *services.ConversationService) *ChatHandler {
	return &ChatHandler{chats: chats, messages: messages, conversations: conversations}
}

// Create handles POST /api/chats. The chat starts empty; the first turn
// arrives via POST /api/conversations/:chatId.
func (h *ChatHandler) Create(c *fiber.Ctx) error {
	var req models.CreateChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	chat, err := h.chats.Create(c.Context(), req, middleware.KeyID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(chat)
}

// List handles GET /api/chats with limit/offset pagination. Clients see
// only chats owned by their key.
func (h *ChatHandler) List(c *fiber.Ctx) error {
	resp, err := h.chats.List(c.Context(), middleware.KeyID(c), middleware.IsAdmin(c),
		c.QueryInt("limit", 20), c.QueryInt("offset", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

// Get handles GET /api/chats/:id.
func (h *ChatHandler) Get(c *fiber.Ctx) error {
	chat, err := h.chats.GetOwned(c.Context(), c.Params("id"), middleware.KeyID(c), middleware.IsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(chat)
}

// Update handles PATCH /api/chats/:id (title rename).
func (h *ChatHandler) Update(c *fiber.Ctx) error {
	var req models.UpdateChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Title == nil || *req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title is required",
		})
	}

	if _, err := h.chats.GetOwned(c.Context(), c.Params("id"), middleware.KeyID(c), middleware.IsAdmin(c)); err != nil {
		return respondError(c, err)
	}

	chat, err := h.chats.UpdateTitle(c.Context(), c.Params("id"), *req.Title)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(chat)
}

// Delete handles DELETE /api/chats/:id. Removing a chat also drops its
// cached memory artifacts.
func (h *ChatHandler) Delete(c *fiber.Ctx) error {
	chatID := c.Params("id")
	if _, err := h.chats.GetOwned(c.Context(), chatID, middleware.KeyID(c), middleware.IsAdmin(c)); err != nil {
		return respondError(c, err)
	}

	if err := h.chats.Delete(c.Context(), chatID); err != nil {
		return respondError(c, err)
	}
	if err := h.conversations.DropMemory(c.Context(), chatID); err != nil {
		// Orphaned artifacts expire by TTL and are swept by the hourly job.
		return c.JSON(fiber.Map{"message": "Chat deleted", "memoryCleanup": "deferred"})
	}
	return c.JSON(fiber.Map{"message": "Chat deleted"})
}

// Messages handles GET /api/chats/:id/messages.
func (h *ChatHandler) Messages(c *fiber.Ctx) error {
	chatID := c.Params("id")
	if _, err := h.chats.GetOwned(c.Context(), chatID, middleware.KeyID(c), middleware.IsAdmin(c)); err != nil {
		return respondError(c, err)
	}

	limit := c.QueryInt("limit", 0)
	offset := c.QueryInt("offset", 0)

	messages, err := h.messages.List(c.Context(), chatID, limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	total, err := h.messages.CountByChat(c.Context(), chatID)
	if err != nil {
		return respondError(c, err)
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	return c.JSON(models.MessageListResponse{
		Messages:   messages,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	})
}
