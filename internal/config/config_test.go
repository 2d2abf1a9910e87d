package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatembed/session-service/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "http://localhost:3000", cfg.Backend.APIHost)
	assert.Equal(t, 300*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "localhost", cfg.Store.Host)
	assert.Equal(t, "6379", cfg.Store.Port)
	assert.Equal(t, "chatembed", cfg.Store.Database)
	assert.Equal(t, 2500*time.Millisecond, cfg.Widget.SettlingDelay)
	assert.False(t, cfg.Widget.ClearOnStart)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BACKEND_API_HOST", "https://backend.example.com")
	t.Setenv("STORE_TYPE", "memory")
	t.Setenv("STORE_TTL_SECONDS", "3600")
	t.Setenv("WIDGET_CUSTOMER_ID", "acme")
	t.Setenv("WIDGET_CLEAR_ON_START", "true")
	t.Setenv("INGEST_SETTLING_DELAY_MS", "100")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://backend.example.com", cfg.Backend.APIHost)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, time.Hour, cfg.Store.TTL)
	assert.Equal(t, "acme", cfg.Widget.CustomerID)
	assert.True(t, cfg.Widget.ClearOnStart)
	assert.Equal(t, 100*time.Millisecond, cfg.Widget.SettlingDelay)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("WIDGET_CLEAR_ON_START", "not-a-bool")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Widget.ClearOnStart)
}
