package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no stray
// config.yaml interferes.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8765, cfg.ListenPort)
	assert.Equal(t, "http://127.0.0.1:3338", cfg.MintURL)
	assert.Empty(t, cfg.MintDBPath)
	assert.Equal(t, 10, cfg.ProbeTimeoutSeconds)
	assert.Equal(t, 5, cfg.DBQueryTimeoutSeconds)
	assert.Equal(t, 5, cfg.PushIntervalSeconds)
	assert.Equal(t, 2000, cfg.LogBufferCapacity)
	assert.Equal(t, 1000, cfg.ActivityBufferCap)
}

func TestEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MINTDECK_MINT_URL", "http://mint.internal:3338")
	t.Setenv("MINTDECK_PUSH_INTERVAL_SECONDS", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://mint.internal:3338", cfg.MintURL)
	assert.Equal(t, 2, cfg.PushIntervalSeconds)
}
