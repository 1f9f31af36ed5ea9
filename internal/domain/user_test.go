package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole(t *testing.T) {
	assert.True(t, RoleArtist.SelfAssignable())
	assert.True(t, RoleUser.SelfAssignable())
	assert.False(t, RoleAdmin.SelfAssignable())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("owner").Valid())
}

func TestUserJSONHidesCredentials(t *testing.T) {
	changed := time.Now()
	u := &User{
		ID:                42,
		PublicID:          uuid.New(),
		Email:             "ink@example.com",
		PasswordHash:      "$2a$12$secret",
		PasswordChangedAt: &changed,
		PasswordReset:     &SecretToken{Hash: "abc", ExpiresAt: changed},
		PendingEmail:      "new@example.com",
	}

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	body := string(raw)

	assert.NotContains(t, body, "secret")
	assert.NotContains(t, body, "abc")
	assert.NotContains(t, body, "new@example.com")
	assert.NotContains(t, body, `"42"`)
	assert.Contains(t, body, u.PublicID.String())
}

func TestUserTokenOverwrite(t *testing.T) {
	u := &User{}
	first := &SecretToken{Hash: "first"}
	second := &SecretToken{Hash: "second"}

	u.SetToken(PurposePasswordReset, first)
	u.SetToken(PurposePasswordReset, second)
	assert.Same(t, second, u.Token(PurposePasswordReset))

	u.PendingEmail = "new@example.com"
	u.SetToken(PurposeEmailChange, &SecretToken{Hash: "x"})
	u.SetToken(PurposeEmailChange, nil)
	assert.Nil(t, u.Token(PurposeEmailChange))
	assert.Empty(t, u.PendingEmail)
}

func TestChangedPasswordAfter(t *testing.T) {
	now := time.Now()
	u := &User{}
	assert.False(t, u.ChangedPasswordAfter(now))

	changed := now.Add(-time.Second)
	u.PasswordChangedAt = &changed
	assert.False(t, u.ChangedPasswordAfter(now), "token minted right after the change stays valid")
	assert.True(t, u.ChangedPasswordAfter(now.Add(-time.Hour)))
}

func TestSanitized(t *testing.T) {
	u := &User{Email: "a@b.c", PasswordHash: "h", Reactivation: &SecretToken{Hash: "r"}}
	clean := u.Sanitized()
	assert.Empty(t, clean.PasswordHash)
	assert.Nil(t, clean.Reactivation)
	assert.Equal(t, "h", u.PasswordHash, "original untouched")
}
