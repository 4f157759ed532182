package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("AUTH_JWT_SIGNING_KEY", "test-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "postgres", cfg.Store.Backend)
	require.Equal(t, "memory", cfg.Throttle.Backend)
	require.Equal(t, 3*time.Second, cfg.Throttle.Window)
	require.Equal(t, 5, cfg.Allocator.MaxAttempts)
	require.Equal(t, "test-secret", cfg.Auth.JWT.SigningKey)
	require.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=seats sslmode=disable",
		cfg.Database.Postgres.DSN())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
store:
  backend: memory
throttle:
  backend: "off"
auth:
  jwt:
    signing_key: from-file
allocator:
  max_attempts: 3
  retry_backoff: 5ms
database:
  redis:
    host: cache
`), 0o600))
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "memory", cfg.Store.Backend)
	require.Equal(t, "off", cfg.Throttle.Backend)
	require.Equal(t, "from-file", cfg.Auth.JWT.SigningKey)
	require.Equal(t, 3, cfg.Allocator.MaxAttempts)
	require.Equal(t, 5*time.Millisecond, cfg.Allocator.RetryBackoff)
	require.Equal(t, "cache:6379", cfg.Database.Redis.Addr())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing signing key", map[string]string{}},
		{"bad store", map[string]string{"AUTH_JWT_SIGNING_KEY": "k", "STORE_BACKEND": "mongo"}},
		{"bad throttle", map[string]string{"AUTH_JWT_SIGNING_KEY": "k", "THROTTLE_BACKEND": "etcd"}},
		{"zero attempts", map[string]string{"AUTH_JWT_SIGNING_KEY": "k", "ALLOCATOR_MAX_ATTEMPTS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
		})
	}
}
