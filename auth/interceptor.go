package auth

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const UserLocal = "user"

// BearerToken reads the token from the Authorization header, falling back to
// the token query parameter browsers use for websocket upgrades.
func BearerToken(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}

// RequireIdentity rejects requests whose identity cannot be resolved and
// stores the resolved user in the request locals.
func RequireIdentity(identity contract.IIdentity) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := identity.Resolve(BearerToken(c), c.Get("X-User"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    errors.Code(err),
				"message": err.Error(),
			})
		}
		c.Locals(UserLocal, user)
		return c.Next()
	}
}

func UserFrom(c *fiber.Ctx) string {
	user, _ := c.Locals(UserLocal).(string)
	return user
}
