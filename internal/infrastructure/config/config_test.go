package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8400", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, 30*time.Second, cfg.Bridge.InvokeTimeout)
	assert.Equal(t, 256, cfg.Bridge.QueueSize)
	assert.Equal(t, "http://localhost:8400/assets", cfg.Bridge.BaseURL)

	assert.Equal(t, "./dist", cfg.Assets.Dir)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("BRIDGE_INVOKE_TIMEOUT", "5s")
	t.Setenv("BRIDGE_QUEUE_SIZE", "32")
	t.Setenv("DOM_BASE_URL", "http://bridge.internal/assets")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Bridge.InvokeTimeout)
	assert.Equal(t, 32, cfg.Bridge.QueueSize)
	assert.Equal(t, "http://bridge.internal/assets", cfg.Bridge.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("non-positive timeout", func(t *testing.T) {
		t.Setenv("BRIDGE_INVOKE_TIMEOUT", "0s")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non-positive queue size", func(t *testing.T) {
		t.Setenv("BRIDGE_QUEUE_SIZE", "-1")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("BRIDGE_QUEUE_SIZE", "not-a-number")
	cfg := LoadOrDefault()
	assert.Equal(t, 256, cfg.Bridge.QueueSize)
}
