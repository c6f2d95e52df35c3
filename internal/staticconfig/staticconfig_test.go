package staticconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/medusa-ds9/medusad/internal/staticconfig"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := staticconfig.Load("")
	require.NoError(t, err)
	require.Equal(t, "/dev/medusa", cfg.Device)
	require.Equal(t, "127.0.0.1:9402", cfg.Listen)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medusad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device: /dev/medusa-test\nlisten: 0.0.0.0:9999\n"), 0o644))

	cfg, err := staticconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/dev/medusa-test", cfg.Device)
	require.Equal(t, "0.0.0.0:9999", cfg.Listen)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := staticconfig.Load("/nonexistent/medusad.yaml")
	require.Error(t, err)
}
