package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef-test"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_PORT", "DATABASE_PATH", "JWT_SECRET", "TOKEN_TTL_MINUTES", "CORS_ORIGINS",
		"ADMIN_USERNAME", "ADMIN_PASSWORD", "DIGEST_CRON", "DIGEST_ENABLED",
		"MONGODB_URI", "MONGODB_DB_NAME", "LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "sbu.db", cfg.Database.Path)
	assert.Equal(t, 60*time.Minute, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Digest.Enabled)
	assert.Equal(t, "0 23 * * *", cfg.Digest.Schedule)
	assert.Empty(t, cfg.MongoDB.URI)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	content := "JWT_SECRET=" + testSecret + "\n" +
		"APP_PORT=9090\n" +
		"TOKEN_TTL_MINUTES=15\n" +
		"CORS_ORIGINS=http://a.test, http://b.test\n" +
		"DIGEST_ENABLED=false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv never overrides variables that are already set, so unset
	// the keys the file provides.
	for _, key := range []string{"JWT_SECRET", "APP_PORT", "TOKEN_TTL_MINUTES", "CORS_ORIGINS", "DIGEST_ENABLED"} {
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Digest.Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"short secret":   {"JWT_SECRET": "short"},
		"bad ttl":        {"JWT_SECRET": testSecret, "TOKEN_TTL_MINUTES": "soon"},
		"zero ttl":       {"JWT_SECRET": testSecret, "TOKEN_TTL_MINUTES": "0"},
		"bad cron":       {"JWT_SECRET": testSecret, "DIGEST_CRON": "every night"},
		"bad bool":       {"JWT_SECRET": testSecret, "DIGEST_ENABLED": "maybe"},
		"half admin":     {"JWT_SECRET": testSecret, "ADMIN_USERNAME": "root"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
