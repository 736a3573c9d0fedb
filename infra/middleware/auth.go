package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"jobscout/pkg/apperr"
	"jobscout/pkg/logger"
	"jobscout/pkg/response"
)

// APIKeyAuth guards the admin routes with a static bearer key. An empty key
// disables the check, which is only acceptable for local development.
func APIKeyAuth(key string) fiber.Handler {
	if key == "" {
		logger.Warn("ADMIN_API_KEY not set, admin endpoints are unauthenticated")
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		presented := c.Get("X-API-Key")
		if presented == "" {
			authHeader := c.Get("Authorization")
			if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
				presented = parts[1]
			}
		}
		if presented == "" {
			return response.Error(c, fiber.StatusUnauthorized, apperr.CodeUnauthorized, "missing api key")
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
			return response.Error(c, fiber.StatusUnauthorized, apperr.CodeUnauthorized, "invalid api key")
		}
		return c.Next()
	}
}
