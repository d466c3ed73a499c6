package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARGUS_DB_PATH", filepath.Join(dir, "data", "argus.db"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.Security.Enabled)
	assert.Equal(t, int64(1<<20), cfg.Security.MaxBodyBytes)
	assert.Equal(t, 10, cfg.Security.MinUserAgentLength)
	assert.Equal(t, 100, cfg.Security.DefaultRateLimit)
	assert.Equal(t, 15*time.Minute, cfg.Security.DefaultRateWindow)
	assert.Equal(t, 3, cfg.Security.BlockThreshold)
	assert.DirExists(t, filepath.Join(dir, "data"))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ARGUS_DB_PATH", filepath.Join(t.TempDir(), "argus.db"))
	t.Setenv("ARGUS_SECURITY_ENABLED", "false")
	t.Setenv("ARGUS_BLOCK_DURATION", "10m")
	t.Setenv("ARGUS_TRUSTED_IPS", "10.0.0.0/8, ,127.0.0.1")
	t.Setenv("ARGUS_NOTIFY_URLS", "discord://token@id")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Security.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Security.BlockDuration)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Security.TrustedIPs)
	assert.Equal(t, []string{"discord://token@id"}, cfg.Security.NotifyURLs)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ARGUS_DB_PATH", filepath.Join(t.TempDir(), "argus.db"))

	t.Setenv("ARGUS_BLOCK_WINDOW", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "ARGUS_BLOCK_WINDOW")

	t.Setenv("ARGUS_BLOCK_WINDOW", "")
	t.Setenv("ARGUS_BLOCK_THRESHOLD", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "must be positive")
}
