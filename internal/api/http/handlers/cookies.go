package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/inkmarket-service/internal/auth"
)

// Sentinel values written over the session cookie.
const (
	cookieLoggedOut = "loggedout"
	cookieDeleted   = "deleted"

	sentinelTTL = 10 * time.Second
)

// CookieSettings controls the session cookie.
type CookieSettings struct {
	Secure bool
	TTL    time.Duration
}

func (s CookieSettings) setSession(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.TTL),
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// overwrite replaces the session cookie with a sentinel that expires almost
// immediately.
func (s CookieSettings) overwrite(c *fiber.Ctx, sentinel string) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    sentinel,
		Path:     "/",
		Expires:  time.Now().Add(sentinelTTL),
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
