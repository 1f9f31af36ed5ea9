package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/inkmarket-service/internal/domain"
	apperrors "github.com/spec-kit/inkmarket-service/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"

	// SessionCookie carries the session token for browser clients.
	SessionCookie = "jwt"
)

// SessionResolver turns a raw session token into the account it belongs to.
type SessionResolver interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// AuthMiddleware validates session tokens and loads the caller.
type AuthMiddleware struct {
	sessions SessionResolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(sessions SessionResolver) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token := TokenFromRequest(c)
	if token == "" {
		return apperrors.NewUnauthorized("You are not logged in! Please log in to get access.")
	}

	user, err := m.sessions.Authenticate(c.UserContext(), token)
	if err != nil {
		return err
	}

	c.Locals(principalKey, user)
	return c.Next()
}

// TokenFromRequest extracts a session token from the Authorization header,
// falling back to the session cookie.
func TokenFromRequest(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	cookie := strings.TrimSpace(c.Cookies(SessionCookie))
	if cookie == "" || cookie == "loggedout" || cookie == "deleted" {
		return ""
	}
	return cookie
}

// UserFromContext retrieves the authenticated user.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok && user != nil
}
