package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "default", cfg.LabID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("PATHLAB_DATA_DIR", "/tmp/test-pathlab")
	t.Setenv("PATHLAB_CACHE_MAX_ITEMS", "500")
	t.Setenv("PATHLAB_CACHE_TTL", "1h")
	t.Setenv("PATHLAB_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("PATHLAB_LAB_ID", "lab-42")
	t.Setenv("PATHLAB_LOG_LEVEL", "debug")
	t.Setenv("PATHLAB_LOG_FORMAT", "text")
	t.Setenv("PATHLAB_TOOL_RATE_LIMIT", "2.5")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-pathlab", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisURL)
	assert.Equal(t, "lab-42", cfg.LabID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 2.5, cfg.ToolRateLimit)
}

func TestLoadLiteConfig_IgnoresBadNumbers(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("PATHLAB_CACHE_MAX_ITEMS", "-3")
	t.Setenv("PATHLAB_CACHE_TTL", "soon")
	t.Setenv("PATHLAB_TOOL_RATE_LIMIT", "-1")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Zero(t, cfg.ToolRateLimit)
}

func TestLiteConfig_ReportsDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.pathlab"}

	assert.Equal(t, "/home/user/.pathlab/reports.db", cfg.ReportsDBPath())
	assert.Equal(t, "/home/user/.pathlab/exports", cfg.ExportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "pathlab")}

	require.NoError(t, cfg.EnsureDataDir())

	_, err := os.Stat(cfg.DataDir)
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"PATHLAB_DATA_DIR",
		"PATHLAB_CACHE_MAX_ITEMS",
		"PATHLAB_CACHE_TTL",
		"PATHLAB_REDIS_URL",
		"PATHLAB_LAB_ID",
		"PATHLAB_LOG_LEVEL",
		"PATHLAB_LOG_FORMAT",
		"PATHLAB_TOOL_RATE_LIMIT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
