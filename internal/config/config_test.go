package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Empty(t, cfg.RobloxServerKey)
	assert.Empty(t, cfg.WebTokenSecret)
	assert.Nil(t, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.MaxSSEPerUser)
	assert.Equal(t, 10, cfg.MaxSSEPerIP)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ROBLOX_SERVER_KEY", "server-key")
	t.Setenv("WEB_TOKEN_SECRET", "token-secret")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("MAX_SSE_PER_USER", "5")
	t.Setenv("MAX_SSE_PER_IP", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "server-key", cfg.RobloxServerKey)
	assert.Equal(t, "token-secret", cfg.WebTokenSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 5, cfg.MaxSSEPerUser)
	assert.Equal(t, 20, cfg.MaxSSEPerIP)
}

func TestLoad_RejectsBadIntegers(t *testing.T) {
	t.Setenv("MAX_SSE_PER_USER", "lots")
	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_SSE_PER_USER")
}

func TestLoad_RejectsNonPositiveCaps(t *testing.T) {
	t.Setenv("MAX_SSE_PER_IP", "0")
	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_SSE_PER_IP")
}
