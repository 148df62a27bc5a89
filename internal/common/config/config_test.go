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
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "https://api.fustan.example"
`)

	cfg, cfgPath, err := LoadConfig[AgentConfig](path)
	require.NoError(t, err)
	assert.Equal(t, path, cfgPath)

	assert.Equal(t, "https://api.fustan.example", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, "https://api.fustan.example", cfg.Realtime.URL)
	assert.Equal(t, "/socket", cfg.Realtime.Path)
	assert.Equal(t, time.Second, cfg.Realtime.ReconnectMinDelay)
	assert.Equal(t, 30*time.Second, cfg.Realtime.ReconnectMaxDelay)
	assert.Equal(t, "disk", cfg.Storage.Type)
	assert.Equal(t, 60*time.Second, cfg.Notifications.PollInterval)
	assert.Equal(t, "en", cfg.Notifications.Language)
	assert.Equal(t, "/auth", cfg.Guard.RedirectPath)
	assert.Equal(t, "fustan_sync", cfg.Metrics.Namespace)
}

func TestLoadConfig_ResolvesEnvPlaceholders(t *testing.T) {
	t.Setenv("FUSTAN_API_URL", "https://staging.fustan.example")

	path := writeConfig(t, `
api:
  base_url: "${FUSTAN_API_URL}"
notifications:
  language: "${FUSTAN_LANG:ar}"
storage:
  type: "${FUSTAN_STORAGE:memory}"
`)

	cfg, _, err := LoadConfig[AgentConfig](path)
	require.NoError(t, err)

	assert.Equal(t, "https://staging.fustan.example", cfg.API.BaseURL)
	assert.Equal(t, "ar", cfg.Notifications.Language, "unset variable falls back to default")
	assert.Equal(t, "memory", cfg.Storage.Type)
}

func TestLoadConfig_MissingBaseURL(t *testing.T) {
	path := writeConfig(t, `
storage:
  type: memory
`)

	_, _, err := LoadConfig[AgentConfig](path)
	assert.ErrorIs(t, err, ErrMissingBaseURL)
}

func TestLoadConfig_UnknownStorageType(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "https://api.fustan.example"
storage:
  type: s3
`)

	_, _, err := LoadConfig[AgentConfig](path)
	assert.ErrorIs(t, err, ErrUnknownStorageType)
}

func TestLoadConfig_UnknownLanguage(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "https://api.fustan.example"
notifications:
  language: fr
`)

	_, _, err := LoadConfig[AgentConfig](path)
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestLoadConfig_MockAPISkipsAgentValidation(t *testing.T) {
	path := writeConfig(t, `
port: 5172
jwt:
  secret_key: "mock-api-test-secret-0123456789abcdef"
  duration: 24h
`)

	cfg, _, err := LoadConfig[MockAPIConfig](path)
	require.NoError(t, err)
	assert.Equal(t, 5172, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Duration)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, _, err := LoadConfig[AgentConfig](filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
