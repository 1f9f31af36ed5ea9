package dto

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/spec-kit/inkmarket-service/internal/domain"
	apperrors "github.com/spec-kit/inkmarket-service/pkg/util/errorutil"
)

// notBlank rejects whitespace-only values; nil and empty are left to Required.
var notBlank = validation.Match(regexp.MustCompile(`\S`)).Error("cannot be blank")

// SignupRequest payload for new accounts. Role and display name rules are
// enforced by the auth service so their failures carry specific messages.
type SignupRequest struct {
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	PasswordConfirm string   `json:"passwordConfirm"`
	Role            string   `json:"role"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	DisplayName     string   `json:"displayName"`
	City            string   `json:"city"`
	State           string   `json:"state"`
	Zipcode         string   `json:"zipcode"`
	StylesOffered   []string `json:"stylesOffered"`
}

// Validate checks required fields.
func (r SignupRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&r.PasswordConfirm, validation.Required),
		validation.Field(&r.FirstName, validation.Required, notBlank, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.Required, notBlank, validation.Length(1, 100)),
	))
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest lists every field a user may change on their own
// profile. Nil fields are left untouched.
type UpdateProfileRequest struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	DisplayName *string `json:"displayName"`
}

func (r UpdateProfileRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, notBlank, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, notBlank, validation.Length(1, 100)),
		validation.Field(&r.DisplayName, validation.NilOrNotEmpty, notBlank, validation.Length(1, 60)),
	))
}

// Empty reports whether the request changes nothing.
func (r UpdateProfileRequest) Empty() bool {
	return r.FirstName == nil && r.LastName == nil && r.DisplayName == nil
}

// UpdatePasswordRequest payload for changing a known password.
type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// ResetPasswordRequest payload for redeeming a reset link.
type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (r ResetPasswordRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&r.PasswordConfirm, validation.Required),
	))
}

// EmailRequest carries a single address: forgot password, reactivation and
// email change requests.
type EmailRequest struct {
	Email string `json:"email"`
}

func (r EmailRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	))
}

// TokenRequest carries a single-use token in the body.
type TokenRequest struct {
	Token string `json:"token"`
}

// AuthResponse is the success envelope for operations that issue a session.
type AuthResponse struct {
	Status string         `json:"status"`
	Token  string         `json:"token"`
	Data   map[string]any `json:"data"`
}

// NewAuthResponse wraps a sanitized user with its session token.
func NewAuthResponse(token string, user *domain.User) AuthResponse {
	return AuthResponse{
		Status: "success",
		Token:  token,
		Data:   map[string]any{"user": user.Sanitized()},
	}
}

// invalid flattens ozzo errors into one 400 with messages in field order.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	fields := make([]string, 0, len(fieldErrs))
	for field := range fieldErrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, field+" "+strings.TrimSpace(fieldErrs[field].Error()))
	}
	return apperrors.NewInvalidInput(messages)
}
