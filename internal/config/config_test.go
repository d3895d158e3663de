package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "gridwatch.db", cfg.DB.Path)
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.Auth.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9090
db:
  path: /var/lib/gridwatch/data.db
log:
  level: debug
auth:
  enabled: true
`), 0o644))
	t.Setenv("GRIDWATCH_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "/var/lib/gridwatch/data.db", cfg.DB.Path)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Auth.Enabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))
	t.Setenv("GRIDWATCH_CONFIG_PATH", path)
	t.Setenv("GRIDWATCH_SERVER_PORT", "7070")
	t.Setenv("GRIDWATCH_AUTH_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.True(t, cfg.Auth.Enabled)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("GRIDWATCH_SERVER_PORT", "not-a-port")
	_, err := Load()
	require.Error(t, err)
}
