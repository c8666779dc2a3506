package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhu-collab/coursechat-api/internal/models"
	"github.com/jhu-collab/coursechat-api/internal/services"
)

// Locals keys set by APIKeyAuth.
const (
	LocalAPIKey     = "api_key"
	LocalAPIKeyID   = "api_key_id"
	LocalAPIKeyRole = "api_key_role"
)

// APIKeyAuth authenticates requests via the X-API-Key header and stores the
// resolved key in locals for downstream handlers.
func APIKeyAuth(keys *services.APIKeyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawKey := c.Get("X-API-Key")
		if rawKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing X-API-Key header",
			})
		}

		key, err := keys.Validate(c.Context(), rawKey)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		c.Locals(LocalAPIKey, key)
		c.Locals(LocalAPIKeyID, key.ID)
		c.Locals(LocalAPIKeyRole, key.Role)
		return c.Next()
	}
}

// RequireAdmin rejects requests whose key is not an admin key. Must run
// after APIKeyAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, ok := c.Locals(LocalAPIKey).(*models.APIKey)
		if !ok || !key.IsAdmin() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Admin API key required",
			})
		}
		return c.Next()
	}
}

// KeyID returns the authenticated key id from locals, or "".
func KeyID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalAPIKeyID).(string)
	return id
}

// IsAdmin reports whether the authenticated key has the admin role.
func IsAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals(LocalAPIKeyRole).(string)
	return role == models.RoleAdmin
}
