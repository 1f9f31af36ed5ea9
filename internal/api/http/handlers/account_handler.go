package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/inkmarket-service/internal/api/dto"
	"github.com/spec-kit/inkmarket-service/internal/service"
)

// AccountHandler exposes the password, email and activation lifecycle.
type AccountHandler struct {
	accounts *service.AccountService
	cookies  CookieSettings
}

// NewAccountHandler constructs handler.
func NewAccountHandler(accounts *service.AccountService, cookies CookieSettings) *AccountHandler {
	return &AccountHandler{accounts: accounts, cookies: cookies}
}

// ForgotPassword handles POST /api/v1/users/forgot-password.
func (h *AccountHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	if err := h.accounts.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Token sent to email!"})
}

// ResetPassword handles PATCH /api/v1/users/reset-password?token=.
func (h *AccountHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	res, err := h.accounts.ResetPassword(c.UserContext(), c.Query("token"), req)
	if err != nil {
		return err
	}
	return sendSession(c, h.cookies, http.StatusOK, res)
}

// UpdatePassword handles PATCH /api/v1/users/update-password.
func (h *AccountHandler) UpdatePassword(c *fiber.Ctx) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	res, err := h.accounts.UpdatePassword(c.UserContext(), caller.ID, req)
	if err != nil {
		return err
	}
	return sendSession(c, h.cookies, http.StatusOK, res)
}

// RequestEmailChange handles POST /api/v1/users/request-email-change.
func (h *AccountHandler) RequestEmailChange(c *fiber.Ctx) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	if err := h.accounts.RequestEmailChange(c.UserContext(), caller.ID, req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Confirmation link sent to your new email address!"})
}

// UpdateEmail handles PATCH /api/v1/users/update-email.
func (h *AccountHandler) UpdateEmail(c *fiber.Ctx) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	user, err := h.accounts.ConfirmEmailChange(c.UserContext(), caller.ID, req.Token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": fiber.Map{"user": user}})
}

// RequestReactivation handles POST /api/v1/users/reactivate.
func (h *AccountHandler) RequestReactivation(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	if err := h.accounts.RequestReactivation(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Reactivation link sent to email!"})
}

// Reactivate handles PATCH /api/v1/users/reactivate/:token.
func (h *AccountHandler) Reactivate(c *fiber.Ctx) error {
	res, err := h.accounts.Reactivate(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}
	return sendSession(c, h.cookies, http.StatusOK, res)
}

// DeactivateMe handles DELETE /api/v1/users/deactivate-me.
func (h *AccountHandler) DeactivateMe(c *fiber.Ctx) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.accounts.DeactivateProfile(c.UserContext(), caller.ID); err != nil {
		return err
	}
	h.cookies.overwrite(c, cookieLoggedOut)
	return c.SendStatus(http.StatusNoContent)
}

// DeleteMe handles DELETE /api/v1/users/delete-me.
func (h *AccountHandler) DeleteMe(c *fiber.Ctx) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.accounts.DeleteProfile(c.UserContext(), caller.ID); err != nil {
		return err
	}
	h.cookies.overwrite(c, cookieDeleted)
	return c.SendStatus(http.StatusNoContent)
}
