package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManagerIssueVerify(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)

	token, exp, err := tm.Issue("3f0c6a5e-8a51-4c59-9d1e-5b3f4b7a2c11")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 2*time.Second)

	res := tm.Verify(token)
	require.True(t, res.OK())
	assert.Equal(t, "3f0c6a5e-8a51-4c59-9d1e-5b3f4b7a2c11", res.Claims.Subject)
	assert.NotNil(t, res.Claims.IssuedAt)
}

func TestTokenManagerExpired(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	issuer := NewTokenManager("secret", time.Hour).WithClock(func() time.Time { return past })

	token, _, err := issuer.Issue("user-1")
	require.NoError(t, err)

	res := NewTokenManager("secret", time.Hour).Verify(token)
	assert.Equal(t, TokenExpired, res.Status)
	assert.Nil(t, res.Claims)
	assert.False(t, res.OK())
}

func TestTokenManagerInvalid(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	token, _, err := tm.Issue("user-1")
	require.NoError(t, err)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": token,
		"tampered":     token[:len(token)-2] + "xx",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			verifier := tm
			if name == "wrong secret" {
				verifier = NewTokenManager("other", time.Hour)
			}
			res := verifier.Verify(raw)
			assert.Equal(t, TokenInvalid, res.Status)
		})
	}
}

func TestTokenManagerRejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	res := NewTokenManager("secret", time.Hour).Verify(unsigned)
	assert.Equal(t, TokenInvalid, res.Status)
}

func TestTokenManagerRequiresSecretAndSubject(t *testing.T) {
	_, _, err := NewTokenManager("", time.Hour).Issue("user-1")
	assert.Error(t, err)

	_, _, err = NewTokenManager("secret", time.Hour).Issue(" ")
	assert.Error(t, err)

	assert.Equal(t, time.Hour, NewTokenManager("secret", 0).TTL())
}
