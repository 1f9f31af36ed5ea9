package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/inkmarket-service/internal/domain"
	apperrors "github.com/spec-kit/inkmarket-service/pkg/util/errorutil"
)

// Authorize ensures the authenticated user has one of the allowed roles.
// It must run after AuthMiddleware.Handle.
func Authorize(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("You are not logged in! Please log in to get access.")
		}
		if _, exists := allowedSet[user.Role]; !exists {
			return apperrors.NewForbidden("You do not have permission to perform this action")
		}
		return c.Next()
	}
}
