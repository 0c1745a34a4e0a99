package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SchedulerAuthMiddleware guards the operations endpoints that external
// cron jobs call. The token may arrive as an X-CRON-SECRET header, a
// bearer Authorization header, or a token query parameter. An empty
// configured token rejects everything.
func SchedulerAuthMiddleware(token func() string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := token()
		if secret == "" || extractSchedulerToken(c) != secret {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		return c.Next()
	}
}

func extractSchedulerToken(c *fiber.Ctx) string {
	if secret := strings.TrimSpace(c.Get("X-CRON-SECRET")); secret != "" {
		return secret
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
