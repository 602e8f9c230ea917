package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.NoSandbox)
	assert.Equal(t, []string{"Image", "Font", "Media"}, cfg.Browser.BlockedResourceTypes)
	assert.Equal(t, 30*time.Second, cfg.Resolver.NavigationTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Resolver.RedirectPause)
	assert.Equal(t, 8*time.Second, cfg.Resolver.IdleTimeout)
	assert.Equal(t, 4, cfg.Resolver.MaxAttempts)
	assert.Equal(t, 800*time.Millisecond, cfg.Resolver.BaseDelay)
	assert.Equal(t, 400*time.Millisecond, cfg.Resolver.MaxJitter)
	assert.False(t, cfg.Resolver.RetryNavigationErrors)
	assert.Equal(t, 1, cfg.Gate.Capacity)
	assert.Zero(t, cfg.RateLimit.RequestsPerSecond, "rate limiting is opt-in")
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("RESOLVER_MAX_ATTEMPTS", "6")
	t.Setenv("RESOLVER_BASE_DELAY", "250ms")
	t.Setenv("RESOLVER_RETRY_NAV_ERRORS", "true")
	t.Setenv("BROWSER_BLOCKED_RESOURCES", "Image, Stylesheet ,")

	cfg := Load()

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 6, cfg.Resolver.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Resolver.BaseDelay)
	assert.True(t, cfg.Resolver.RetryNavigationErrors)
	assert.Equal(t, []string{"Image", "Stylesheet"}, cfg.Browser.BlockedResourceTypes)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	t.Setenv("RESOLVER_IDLE_TIMEOUT", "eight seconds")

	cfg := Load()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 8*time.Second, cfg.Resolver.IdleTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Resolver.MaxAttempts = 0 }},
		{"too many attempts", func(c *Config) { c.Resolver.MaxAttempts = MaxAttemptsLimit + 1 }},
		{"zero gate capacity", func(c *Config) { c.Gate.Capacity = 0 }},
		{"negative jitter", func(c *Config) { c.Resolver.MaxJitter = -time.Millisecond }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"no navigation timeout", func(c *Config) { c.Resolver.NavigationTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
