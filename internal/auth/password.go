package auth

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	minBcryptCost     = 10
	defaultBcryptCost = 12

	// changedAtSkew backdates passwordChangedAt so a session minted in the
	// same request is not considered stale.
	changedAtSkew = time.Second
)

// ErrEmptyPassword is returned when hashing an empty string.
var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordHasher hashes credentials with bcrypt.
type PasswordHasher struct {
	cost int
	now  func() time.Time
}

// NewPasswordHasher returns a hasher using cost, clamped to a safe minimum.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = defaultBcryptCost
	}
	if cost < minBcryptCost {
		cost = minBcryptCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost, now: time.Now}
}

// WithClock returns a copy of the hasher reading time from now.
func (h *PasswordHasher) WithClock(now func() time.Time) *PasswordHasher {
	clone := *h
	clone.now = now
	return &clone
}

// Hash hashes a new password and returns the passwordChangedAt stamp that
// must be stored with it.
func (h *PasswordHasher) Hash(password string) (string, time.Time, error) {
	if password == "" {
		return "", time.Time{}, ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", time.Time{}, err
	}
	return string(hashed), h.now().Add(-changedAtSkew), nil
}

// Compare verifies a password against its hashed value.
func (h *PasswordHasher) Compare(hashed, plain string) bool {
	if hashed == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
