package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"
)

// GlobalRateLimit bounds unauthenticated traffic per client IP.
func GlobalRateLimit() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded",
			})
		},
	})
}

// RateLimitByAPIKey bounds request volume per authenticated key using a
// fixed one-minute Redis window. With no Redis configured it is a no-op, so
// single-node deployments still work.
func RateLimitByAPIKey(rdb *redis.Client, maxPerMinute int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil {
			return c.Next()
		}
		keyID := KeyID(c)
		if keyID == "" {
			return c.Next()
		}

		window := time.Now().UTC().Format("200601021504")
		counterKey := fmt.Sprintf("ratelimit:%s:%s", keyID, window)

		count, err := rdb.Incr(c.Context(), counterKey).Result()
		if err != nil {
			// Redis being down should degrade to unlimited, not to 500s.
			return c.Next()
		}
		if count == 1 {
			rdb.Expire(c.Context(), counterKey, 2*time.Minute)
		}
		if count > int64(maxPerMinute) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded for this API key",
			})
		}
		return c.Next()
	}
}
