package app

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"APP_HOST", "PORT", "PG_DSN", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "SESSION_SECRET", "RATE_LIMIT_PER_MINUTE", "EXPORT_DIR"} {
		unsetEnv(t, key)
	}
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_USERS", "")
	t.Setenv("CSRF_SECRET", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, "postgres://postgres:@localhost:5432/records?sslmode=disable", cfg.DSN())
	assert.Equal(t, cfg.SessionSecret, cfg.CSRFSecret)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, ".", cfg.ExportDir)
	assert.False(t, cfg.IsProduction())
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadConfigOverrides(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Setenv("PORT", "8081")
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/x")
	t.Setenv("AUTH_USERS", "admin:"+string(hash))
	t.Setenv("CSRF_SECRET", "csrf")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8081", cfg.Addr())
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
	assert.Equal(t, "csrf", cfg.CSRFSecret)

	dir, err := cfg.Directory()
	require.NoError(t, err)
	assert.True(t, dir.Verify("admin", "pw"))
}

func TestLoadConfigRejectsPlaintextUsers(t *testing.T) {
	t.Setenv("AUTH_USERS", "admin:hunter2")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_USERS")
}

func TestLoadConfigRequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_USERS", "")
	t.Setenv("SESSION_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("SESSION_SECRET", "a-real-secret")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel(" warn ").String())
	assert.Equal(t, "INFO", parseLevel("loud").String())
}
