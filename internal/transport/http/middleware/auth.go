package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebay/backend/internal/config"
	"github.com/codebay/backend/internal/domain"
)

func AdminAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := cfg.Auth.AdminAPIKey
		if apiKey == "" {
			return c.Next()
		}

		headerToken := c.Get("X-Admin-Token")
		if headerToken == "" {
			auth := c.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
				headerToken = auth[len(prefix):]
			}
		}

		if headerToken != apiKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		return c.Next()
	}
}

const sessionCookieKey = "session_cookie"

// SessionCookie captures the caller's session cookie so repository jobs can
// forward it to same-origin remotes. The cookie value never enters a task
// record or a log line.
func SessionCookie(cfg *config.Config) fiber.Handler {
	name := cfg.Auth.SessionCookie
	return func(c *fiber.Ctx) error {
		if value := c.Cookies(name); value != "" {
			c.Locals(sessionCookieKey, &domain.SessionCookie{Name: name, Value: value})
		}
		return c.Next()
	}
}

// SessionCookieFrom returns the cookie captured for this request, or nil.
func SessionCookieFrom(c *fiber.Ctx) *domain.SessionCookie {
	cookie, _ := c.Locals(sessionCookieKey).(*domain.SessionCookie)
	return cookie
}
