package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Empty(t, cfg.RedisURL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_PORT", "9090")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
}

func TestLoadRefusesDevSecretInProduction(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENV", "production")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("SESSION_SECRET", "a-real-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
