package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role represents what a user may do on the marketplace.
type Role string

const (
	RoleArtist Role = "artist"
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleArtist, RoleUser, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable reports whether r may be chosen at public signup.
func (r Role) SelfAssignable() bool {
	return r == RoleArtist || r == RoleUser
}

// SecretToken is the persisted half of a single-use token: only the hash
// ever reaches storage.
type SecretToken struct {
	Hash      string
	ExpiresAt time.Time
}

// User is the account aggregate. The numeric ID never leaves the service;
// clients only see PublicID.
type User struct {
	ID                int64      `json:"-"`
	PublicID          uuid.UUID  `json:"id"`
	Email             string     `json:"email"`
	DisplayName       string     `json:"displayName"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Role              Role       `json:"role"`
	IsActive          bool       `json:"isActive"`
	VerifiedEmail     bool       `json:"verifiedEmail"`
	PasswordHash      string     `json:"-"`
	PasswordChangedAt *time.Time `json:"-"`

	PasswordReset *SecretToken `json:"-"`
	EmailChange   *SecretToken `json:"-"`
	PendingEmail  string       `json:"-"`
	Reactivation  *SecretToken `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Token returns the outstanding token for purpose, if any.
func (u *User) Token(purpose TokenPurpose) *SecretToken {
	switch purpose {
	case PurposePasswordReset:
		return u.PasswordReset
	case PurposeEmailChange:
		return u.EmailChange
	case PurposeReactivation:
		return u.Reactivation
	}
	return nil
}

// SetToken replaces the outstanding token for purpose. A nil token clears it.
func (u *User) SetToken(purpose TokenPurpose, token *SecretToken) {
	switch purpose {
	case PurposePasswordReset:
		u.PasswordReset = token
	case PurposeEmailChange:
		u.EmailChange = token
		if token == nil {
			u.PendingEmail = ""
		}
	case PurposeReactivation:
		u.Reactivation = token
	}
}

// ChangedPasswordAfter reports whether the password changed after a session
// issued at issuedAt. Comparison is at second precision, matching JWT iat.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

// Sanitized returns a copy safe to hand to response encoders.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	clean := *u
	clean.PasswordHash = ""
	clean.PasswordChangedAt = nil
	clean.PasswordReset = nil
	clean.EmailChange = nil
	clean.PendingEmail = ""
	clean.Reactivation = nil
	return &clean
}
