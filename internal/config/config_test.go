package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 5, cfg.Seal.SecretShares)
	assert.Equal(t, 3, cfg.Seal.SecretThreshold)
	assert.Equal(t, "rsa-4096", cfg.PKI.RootKeyType)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := &Config{Environment: "staging"}
	setDefaults(original)
	original.Storage.Backend = "bolt"

	require.NoError(t, SaveToFile(original, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", loaded.Environment)
	assert.Equal(t, "bolt", loaded.Storage.Backend)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("SECRETCORE_STORAGE_BACKEND", "postgres")
	t.Setenv("SECRETCORE_LOG_LEVEL", "debug")

	dir := t.TempDir()
	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "test"})
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("SECRETCORE_TEST_VAR", "resolved")
	assert.Equal(t, "resolved", SubstituteEnvVars("${SECRETCORE_TEST_VAR}"))
	assert.Equal(t, "fallback", SubstituteEnvVars("${SECRETCORE_UNSET_VAR:fallback}"))
}

func TestGetEnvironment(t *testing.T) {
	os.Unsetenv("SECRETCORE_ENV")
	os.Unsetenv("ENVIRONMENT")
	assert.Equal(t, "development", GetEnvironment())

	t.Setenv("SECRETCORE_ENV", "Production")
	assert.Equal(t, "production", GetEnvironment())
	assert.True(t, IsProduction())
}
