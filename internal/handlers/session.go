package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/acervo/internal/service"
	"github.com/jjenkins/acervo/internal/session"
)

const (
	viewerKey = "viewer"
	claimsKey = "claims"
)

// SessionMiddleware resolves the session cookie into a viewer. Rights are
// reloaded from the store on every request, so approvals and revocations
// take effect without a new login.
func SessionMiddleware(sessions *session.Manager, accounts *service.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(session.CookieName)
		if raw == "" || sessions == nil {
			return c.Next()
		}

		ctx := c.UserContext()
		claims, err := sessions.Parse(ctx, raw)
		if err != nil {
			clearSessionCookie(c, c.Protocol() == "https")
			return c.Next()
		}
		id, err := claims.AccountID()
		if err != nil {
			clearSessionCookie(c, c.Protocol() == "https")
			return c.Next()
		}

		v, err := accounts.Viewer(ctx, id)
		if err != nil {
			return err
		}
		c.Locals(viewerKey, v)
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

func setSessionCookie(c *fiber.Ctx, token string, ttl time.Duration, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearSessionCookie(c *fiber.Ctx, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func claimsOf(c *fiber.Ctx) *session.Claims {
	claims, _ := c.Locals(claimsKey).(*session.Claims)
	return claims
}
