package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.False(t, cfg.App.IsProduction())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 10*time.Minute, cfg.Auth.PasswordResetTTL())
	assert.Equal(t, 10*time.Minute, cfg.Auth.EmailChangeTTL())
	assert.Equal(t, 3, cfg.RateLimit.TokenRequests)
}

func TestLoadSelectsSessionMaterialPerEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "dev-only")
	t.Setenv("AUTH_JWT_SECRET_PROD", "prod-only")
	t.Setenv("AUTH_JWT_EXPIRES_IN", "720h")
	t.Setenv("AUTH_JWT_EXPIRES_IN_PROD", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	prod := cfg.App.IsProduction()
	assert.True(t, prod)
	assert.Equal(t, "prod-only", cfg.Auth.SessionSecret(prod))
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTL(prod))
	assert.Equal(t, "dev-only", cfg.Auth.SessionSecret(false))
	assert.Equal(t, 720*time.Hour, cfg.Auth.SessionTTL(false))
}

func TestLoadRequiresProductionSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET_PROD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestTTLFallbacks(t *testing.T) {
	a := AuthConfig{}
	assert.Equal(t, 10*time.Minute, a.PasswordResetTTL())
	assert.Equal(t, time.Hour, a.ReactivationTTL())
}

func TestCookieLifetime(t *testing.T) {
	c := CookieConfig{ExpiresInDays: 2, ExpiresInHoursProd: 3}
	assert.Equal(t, 48*time.Hour, c.Lifetime(false))
	assert.Equal(t, 3*time.Hour, c.Lifetime(true))
	assert.Equal(t, time.Hour, CookieConfig{}.Lifetime(true))
}
