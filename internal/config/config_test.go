package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := Default()
	require.Equal(t, "info", c.LogLevel)
	require.Equal(t, 2000, c.ScavengeIntervalMs)
	require.Equal(t, 5000, c.ReapIntervalMs)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), c)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hrbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\npeer_mac: AABBCCDDEEFF\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, "AABBCCDDEEFF", c.PeerMAC)
	require.Equal(t, 2000, c.ScavengeIntervalMs)
}
