package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/inkmarket-service/internal/api/http/handlers"
	"github.com/spec-kit/inkmarket-service/internal/auth"
	"github.com/spec-kit/inkmarket-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Accounts       *handlers.AccountHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	users := app.Group("/api/v1/users")
	users.Post("/signup", cfg.Users.Signup)
	users.Post("/login", cfg.Users.Login)
	users.Get("/logout", cfg.Users.Logout)
	users.Get("/validate-token", cfg.Users.ValidateToken)

	users.Post("/forgot-password", cfg.Accounts.ForgotPassword)
	users.Patch("/reset-password", cfg.Accounts.ResetPassword)
	users.Post("/reactivate", cfg.Accounts.RequestReactivation)
	users.Patch("/reactivate/:token", cfg.Accounts.Reactivate)

	protected := users.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/me", cfg.Users.Me)
	protected.Patch("/update-me", cfg.Users.UpdateMe)
	protected.Patch("/update-password", cfg.Accounts.UpdatePassword)
	protected.Post("/request-email-change", cfg.Accounts.RequestEmailChange)
	protected.Patch("/update-email", cfg.Accounts.UpdateEmail)
	protected.Delete("/deactivate-me", cfg.Accounts.DeactivateMe)
	protected.Delete("/delete-me", cfg.Accounts.DeleteMe)

	protected.Get("/", auth.Authorize(domain.RoleAdmin), cfg.Users.List)
}
