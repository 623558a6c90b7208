package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_PATH", path)
	return path
}

func TestLoad_FileWithDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "${TEST_PORT_DEFAULTS:-9999}"
  jwt_secret: "${TEST_SECRET_DEFAULTS:-dev-secret}"
storage:
  type: mongodb
  mongodb:
    url: "mongodb://localhost:27017"
`)

	result, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, result.Path)

	cfg := result.Config
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "dev-secret", cfg.Server.JWTSecret)
	assert.Equal(t, "mongodb", cfg.Storage.Type)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.MongoDB.URL)
	// Sections absent from the file keep their defaults.
	assert.Equal(t, "vendorrisk", cfg.Storage.MongoDB.Database)
	assert.Equal(t, "file", cfg.Freshness.Backend)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	writeConfig(t, `
server:
  port: "${TEST_PORT_DEFAULTS:-9999}"
`)
	t.Setenv("TEST_PORT_DEFAULTS", "1111")

	result, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "1111", result.Config.Server.Port)

	t.Setenv("PORT", "2222")
	result, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "2222", result.Config.Server.Port)
}

func TestLoad_MissingConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	writeConfig(t, "server: [unterminated")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr string
	}{
		{name: "unknown storage", envVars: map[string]string{"STORAGE_TYPE": "oracle"}, wantErr: "unknown storage type"},
		{name: "unknown freshness backend", envVars: map[string]string{"FRESHNESS_BACKEND": "etcd"}, wantErr: "unknown freshness backend"},
		{name: "redis without url", envVars: map[string]string{"FRESHNESS_BACKEND": "redis"}, wantErr: "freshness.redis.url"},
		{name: "s3 without bucket", envVars: map[string]string{"FILES_BACKEND": "s3"}, wantErr: "files.s3.bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, "server:\n  port: \"8080\"\n")
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
