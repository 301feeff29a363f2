package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coursescrape.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 3, cfg.Navigation.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Navigation.BaseDelay)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
navigation:
  timeout: 45s
  max_retries: 5
run:
  delay: 500ms
storage:
  backend: minio
  bucket: curriculum-assets
`)
	t.Setenv("COURSESCRAPE_CREDENTIALS_ROADMAPS_EMAIL", "coach@example.org")
	t.Setenv("COURSESCRAPE_CREDENTIALS_ROADMAPS_PASSWORD", "hunter2")
	t.Setenv("COURSESCRAPE_RUN_DELAY", "1s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Navigation.Timeout)
	assert.Equal(t, 5, cfg.Navigation.MaxRetries)
	assert.Equal(t, time.Second, cfg.Run.Delay)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, "curriculum-assets", cfg.Storage.Bucket)

	creds, ok := cfg.Credentials.For("roadmaps")
	require.True(t, ok)
	assert.Equal(t, "coach@example.org", creds.Email)

	_, ok = cfg.Credentials.For("snorkl")
	assert.False(t, ok)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := &Config{
		Navigation: NavigationConfig{Timeout: 0, MaxRetries: 0},
		Storage:    StorageConfig{Backend: "s3"},
		AI:         AIConfig{Provider: "gemini"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "navigation.timeout")
	assert.Contains(t, err.Error(), "navigation.max_retries")
	assert.Contains(t, err.Error(), "storage.backend")
	assert.Contains(t, err.Error(), "ai.provider")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
