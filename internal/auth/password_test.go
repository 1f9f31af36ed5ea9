package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasherRoundTrip(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := NewPasswordHasher(minBcryptCost).WithClock(func() time.Time { return fixed })

	hash, changedAt, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)
	assert.Equal(t, fixed.Add(-time.Second), changedAt)

	assert.True(t, h.Compare(hash, "correct horse battery"))
	assert.False(t, h.Compare(hash, "wrong horse battery"))
	assert.False(t, h.Compare("", "correct horse battery"))
}

func TestPasswordHasherCost(t *testing.T) {
	h := NewPasswordHasher(4)
	hash, _, err := h.Hash("pw123456")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cost, minBcryptCost)

	assert.Equal(t, defaultBcryptCost, NewPasswordHasher(0).cost)
}

func TestPasswordHasherRejectsEmpty(t *testing.T) {
	_, _, err := NewPasswordHasher(minBcryptCost).Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}
