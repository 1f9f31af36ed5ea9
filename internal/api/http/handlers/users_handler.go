package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/inkmarket-service/internal/api/dto"
	"github.com/spec-kit/inkmarket-service/internal/auth"
	"github.com/spec-kit/inkmarket-service/internal/domain"
	"github.com/spec-kit/inkmarket-service/internal/observability"
	"github.com/spec-kit/inkmarket-service/internal/service"
	apperrors "github.com/spec-kit/inkmarket-service/pkg/util/errorutil"
)

const msgNotForPasswords = "This route is not for password updates. Please use /update-password."

// UsersHandler exposes signup, login and profile endpoints.
type UsersHandler struct {
	auth    *service.AuthService
	cookies CookieSettings
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, cookies CookieSettings) *UsersHandler {
	return &UsersHandler{auth: authService, cookies: cookies}
}

// Signup handles POST /api/v1/users/signup.
func (h *UsersHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	res, err := h.auth.Signup(c.UserContext(), req, observability.ClientIP(c))
	if err != nil {
		return err
	}
	return sendSession(c, h.cookies, http.StatusCreated, res)
}

// Login handles POST /api/v1/users/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return sendSession(c, h.cookies, http.StatusOK, res)
}

// Logout handles GET /api/v1/users/logout. Sessions are stateless, so the
// cookie is simply overwritten.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	h.cookies.overwrite(c, cookieLoggedOut)
	return c.JSON(fiber.Map{"status": "success"})
}

// ValidateToken handles GET /api/v1/users/validate-token.
func (h *UsersHandler) ValidateToken(c *fiber.Ctx) error {
	result := h.auth.ValidateToken(c.UserContext(), auth.TokenFromRequest(c))
	return c.JSON(fiber.Map{"status": "success", "data": result})
}

// Me handles GET /api/v1/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.auth.Me(c.UserContext(), caller.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": fiber.Map{"user": user}})
}

type updateMeBody struct {
	dto.UpdateProfileRequest
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

// UpdateMe handles PATCH /api/v1/users/update-me.
func (h *UsersHandler) UpdateMe(c *fiber.Ctx) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	var body updateMeBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}
	if body.Password != nil || body.PasswordConfirm != nil {
		return apperrors.NewValidationError(msgNotForPasswords, nil)
	}

	user, err := h.auth.UpdateProfile(c.UserContext(), caller.ID, body.UpdateProfileRequest)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": fiber.Map{"user": user}})
}

// List handles GET /api/v1/users (admin only).
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.auth.ListUsers(c.UserContext(), c.QueryInt("limit", 100), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"results": len(users),
		"data":    fiber.Map{"users": users},
	})
}

func sendSession(c *fiber.Ctx, cookies CookieSettings, status int, res *service.AuthResult) error {
	cookies.setSession(c, res.Session.Token)
	return c.Status(status).JSON(dto.NewAuthResponse(res.Session.Token, res.User))
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("You are not logged in! Please log in to get access.")
	}
	return user, nil
}

func invalidBody() error {
	return apperrors.NewValidationError("Invalid request body", nil)
}
