// Package config provides configuration management for the lab server.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// Reports are kept in a local SQLite file; Redis is optional.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files

	// Cache settings
	CacheMaxItems int           // Entries in the classification memo and tool result cache
	CacheTTL      time.Duration // Tool result TTL
	RedisURL      string        // Optional: shared tool result cache

	// Defaults applied to reports saved through MCP tools
	LabID string

	// Tool calls allowed per second across all clients; 0 disables throttling
	ToolRateLimit float64

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".pathlab")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      10 * time.Minute,
		LabID:         "default",
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("PATHLAB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("PATHLAB_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("PATHLAB_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}
	cfg.RedisURL = os.Getenv("PATHLAB_REDIS_URL")

	if v := os.Getenv("PATHLAB_LAB_ID"); v != "" {
		cfg.LabID = v
	}
	if v := os.Getenv("PATHLAB_TOOL_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.ToolRateLimit = f
		}
	}

	if v := os.Getenv("PATHLAB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PATHLAB_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// ReportsDBPath returns the path to the reports SQLite database.
func (c *LiteConfig) ReportsDBPath() string {
	return filepath.Join(c.DataDir, "reports.db")
}

// ExportDir returns the default directory for report exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
