package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhu-collab/coursechat-api/internal/models"
	"github.com/jhu-collab/coursechat-api/internal/services"
)

// APIKeyHandler exposes admin-only key management.
type APIKeyHandler struct {
	keys *services.APIKeyService
}

// NewAPIKeyHandler creates an APIKeyHandler.
func NewAPIKeyHandler(keys *services.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

// Create handles POST /api/api-keys. The raw key appears only in this
// response.
func (h *APIKeyHandler) Create(c *fiber.Ctx) error {
	var req models.CreateAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.keys.Create(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// List handles GET /api/api-keys.
func (h *APIKeyHandler) List(c *fiber.Ctx) error {
	keys, err := h.keys.List(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	return c.JSON(fiber.Map{"apiKeys": keys})
}

// Get handles GET /api/api-keys/:id.
func (h *APIKeyHandler) Get(c *fiber.Ctx) error {
	key, err := h.keys.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(key)
}

// Update handles PATCH /api/api-keys/:id (activate, deactivate, describe).
func (h *APIKeyHandler) Update(c *fiber.Ctx) error {
	var req models.UpdateAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	key, err := h.keys.Update(c.Context(), c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(key)
}

// Delete handles DELETE /api/api-keys/:id (soft delete).
func (h *APIKeyHandler) Delete(c *fiber.Ctx) error {
	if err := h.keys.SoftDelete(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "API key deleted"})
}
