package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("AUTH_SESSION_TTL", "")

	cfg := Load()

	assert.Equal(t, "promptlab", cfg.AppName)
	assert.False(t, cfg.AuthCookieSecure)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
}

func TestLoadProductionForcesSecureCookies(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("AUTH_COOKIE_SECURE", "false")

	cfg := Load()

	assert.True(t, cfg.AuthCookieSecure)
	assert.True(t, cfg.IsProduction())
}

func TestLoadRateLimitRequiresRedis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RATE_LIMIT_ORG_SWITCH_BURST", "3")

	cfg := Load()

	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 3, cfg.RateLimit.OrgSwitchBurst)
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("X_TTL", "90")
	assert.Equal(t, 90*time.Second, getenvDuration("X_TTL", time.Minute))

	t.Setenv("X_TTL", "2h")
	assert.Equal(t, 2*time.Hour, getenvDuration("X_TTL", time.Minute))

	t.Setenv("X_TTL", "garbage")
	assert.Equal(t, time.Minute, getenvDuration("X_TTL", time.Minute))
}
