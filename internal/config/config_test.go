package config

import (
	"testing"
	"time"

	"fieldload/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"USER", "PASSWORD", "CLIENT", "MODE", "SERVER_URL", "CONTENT_TYPE",
		"RATE_PER_SECOND", "HTTP_TIMEOUT", "EXCEL_FILE", "ENV_ID", "METADATA_NAME",
		"PAGE_SIZE", "WORKERS", "LOG_FILE", "LOG_LEVEL", "DATABASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Load.PageSize)
	assert.Equal(t, 10, cfg.Load.Workers)
	assert.Equal(t, "data/values.xlsx", cfg.Load.SourceFile)
	assert.Equal(t, 120.0, cfg.Catalog.RatePerSecond)
	assert.Equal(t, 30*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, "fieldload.log", cfg.Logging.File)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_ID", "42")
	t.Setenv("METADATA_NAME", "Estado")
	t.Setenv("WORKERS", "60")
	t.Setenv("PAGE_SIZE", "250")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("CLIENT", "acme")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "42", cfg.Load.EnvironmentID)
	assert.Equal(t, "Estado", cfg.Load.FieldName)
	assert.Equal(t, 60, cfg.Load.Workers)
	assert.Equal(t, 250, cfg.Load.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Catalog.Timeout)
	assert.NoError(t, cfg.ValidateForLoad())
}

func TestLoadRejectsNonPositiveWorkers(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKERS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestValidateForLoadRequiresIdentity(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.ValidateForLoad()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENV_ID")

	cfg.Load.EnvironmentID = "42"
	cfg.Load.FieldName = "Estado"
	err = cfg.ValidateForLoad()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLIENT")
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://acme.greendocs.net/", CatalogConfig{Client: "acme"}.BaseURL())
	assert.Equal(t, "http://acme.newhom.greendocs.net/", CatalogConfig{Client: "acme", Mode: "dev"}.BaseURL())
	assert.Equal(t, "http://127.0.0.1:9000/", CatalogConfig{Client: "acme", ServerURL: "http://127.0.0.1:9000"}.BaseURL())
}

func TestAuthorization(t *testing.T) {
	cfg := CatalogConfig{User: "alice", Password: "secret"}
	assert.Equal(t, "Basic YWxpY2U6c2VjcmV0", cfg.Authorization())
}
