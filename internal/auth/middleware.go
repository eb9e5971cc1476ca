package auth

import (
	"strings"

	"github.com/Kyz7/kolegium/internal/response"
	"github.com/Kyz7/kolegium/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// JWTProtected validates the bearer token and stores the caller in
// c.Locals: "user_id" (uint) and "display_role" (string). The display role
// is for UI only; the policy reloads roles through middleware.LoadSubject.
func JWTProtected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if header == "" {
			return response.Error(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization token", nil)
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" || strings.Contains(raw, " ") {
			return response.Error(c, fiber.StatusUnauthorized, "INVALID_TOKEN_FORMAT", "Invalid token format", nil)
		}

		claims, err := utils.ParseAccessToken(raw)
		if err != nil {
			return response.Error(c, fiber.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token", nil)
		}
		userID, err := claims.UserID()
		if err != nil {
			return response.Error(c, fiber.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token", nil)
		}

		c.Locals("user_id", userID)
		c.Locals("display_role", claims.Role)
		return c.Next()
	}
}
