package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/erikwilensky/codecheck/internal/utils"
)

// AdminActorKey is the fiber local holding the authenticated admin actor.
const AdminActorKey = "admin_actor"

// AdminPasswordHeader carries the shared admin secret.
const AdminPasswordHeader = "X-Admin-Password"

// AdminAuthenticator checks the shared admin secret and admin session tokens.
type AdminAuthenticator interface {
	VerifySecret(secret string) bool
	ParseToken(token string) (string, error)
}

// AdminProtected admits requests carrying a valid bearer session token, the shared
// secret in the X-Admin-Password header, or the secret as a password query parameter.
func AdminProtected(auth AdminAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, ok := bearerToken(c.Get(fiber.HeaderAuthorization)); ok {
			subject, err := auth.ParseToken(token)
			if err != nil {
				return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
			}
			c.Locals(AdminActorKey, subject)
			return c.Next()
		}

		secret := strings.TrimSpace(c.Get(AdminPasswordHeader))
		if secret == "" {
			secret = strings.TrimSpace(c.Query("password"))
		}
		if secret == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "admin authentication required")
		}
		if !auth.VerifySecret(secret) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid admin password")
		}

		c.Locals(AdminActorKey, "admin")
		return c.Next()
	}
}

// AdminActor returns the admin actor bound by AdminProtected.
func AdminActor(c *fiber.Ctx) string {
	if value, ok := c.Locals(AdminActorKey).(string); ok {
		return value
	}
	return ""
}

func bearerToken(authorization string) (string, bool) {
	const bearer = "bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(authorization[len(bearer):])
	return token, token != ""
}
