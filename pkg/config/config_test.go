package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvInternalSecret, "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, DefaultIdleTTL, cfg.ActorIdleTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "s3cret", cfg.InternalSecret)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
listenAddr: ":9090"
baseDomain: mocknest.dev
dataDir: /var/lib/mocknest
internalSecret: file-secret
actorIdleTTL: 90s
hubKeepAlive: 45s
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "mocknest.dev", cfg.BaseDomain)
	assert.Equal(t, "/var/lib/mocknest", cfg.DataDir)
	assert.Equal(t, "file-secret", cfg.InternalSecret)
	assert.Equal(t, 90*time.Second, cfg.ActorIdleTTL)
	assert.Equal(t, 45*time.Second, cfg.HubKeepAlive)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
internalSecret: file-secret
listenAddr: ":9090"
`)
	t.Setenv(EnvInternalSecret, "env-secret")
	t.Setenv(EnvListenAddr, ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.InternalSecret, "environment beats the file")
	assert.Equal(t, ":7070", cfg.ListenAddr)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv(EnvInternalSecret, "")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvInternalSecret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "listenAddr: [broken")
	_, err := Load(path)
	assert.Error(t, err)
}
