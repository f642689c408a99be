package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFilesPresent(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 100, cfg.Channels.MaxClients)
	assert.False(t, cfg.Channels.RadioParadise.Enabled)
}

func TestLoad_ConfigFileOverridesDefaultsAndEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	toml := `
[server]
port = "9100"

[channels]
max_clients = 50
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644))

	t.Setenv("DENPA_SERVER_PORT", "9200")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9200", cfg.Server.Port, "env should win over file")
	assert.Equal(t, 50, cfg.Channels.MaxClients, "file should win over default")
	assert.Equal(t, 180, cfg.Channels.CooloffSecs, "unset keys keep their default")
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}
