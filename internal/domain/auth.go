package domain

import "time"

// TokenPurpose names the flow a single-use secret token belongs to.
type TokenPurpose string

const (
	PurposePasswordReset TokenPurpose = "password_reset"
	PurposeEmailChange   TokenPurpose = "email_change"
	PurposeReactivation  TokenPurpose = "reactivation"
)

// Session describes an issued session token.
type Session struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
