package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/coursescrape/internal/artifact"
	"github.com/v0xg/coursescrape/internal/config"
	"github.com/v0xg/coursescrape/internal/logger"
)

func TestNewBackendDefaultsToLocal(t *testing.T) {
	root := filepath.Join(t.TempDir(), "artifacts")
	b, err := newBackend(context.Background(), config.StorageConfig{Backend: "local", LocalRoot: root})
	require.NoError(t, err)
	assert.IsType(t, &artifact.LocalBackend{}, b)
	assert.DirExists(t, root)
}

func TestCredentialsNameTheEnvironment(t *testing.T) {
	a := &app{cfg: &config.Config{}, log: logger.NewNoOp()}

	_, err := a.credentials("snorkl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COURSESCRAPE_CREDENTIALS_SNORKL_EMAIL")

	a.cfg.Credentials.Snorkl = config.SiteCredentials{Email: "t@school.org", Password: "pw"}
	creds, err := a.credentials("snorkl")
	require.NoError(t, err)
	assert.Equal(t, "t@school.org", creds.Email)
}

func TestTaggerDisabledIsNilInterface(t *testing.T) {
	a := &app{}
	assert.Nil(t, a.tagger())
}
