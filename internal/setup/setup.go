// Package setup registers the lite MCP server with desktop MCP clients by
// editing their mcpServers JSON configuration.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultServerName is the key used in the client's mcpServers map.
const DefaultServerName = "pathlab"

// ClientConfig represents an MCP client configuration file. Keys other than
// mcpServers are preserved on save.
type ClientConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`

	extra map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for registering the server.
type Options struct {
	ConfigPath string // client configuration file
	ServerName string // defaults to DefaultServerName
	BinaryPath string // path to mcp-server-lite; searched for when empty
	DataDir    string
	LabID      string
	RedisURL   string
}

// LoadClientConfig loads a client configuration. A missing file yields an
// empty configuration.
func LoadClientConfig(configPath string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: make(map[string]MCPServerConfig)}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]MCPServerConfig)
	}
	return cfg, nil
}

// SaveClientConfig writes the configuration, creating the directory if needed.
func SaveClientConfig(configPath string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]interface{}, len(cfg.extra)+1)
	for k, v := range cfg.extra {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the lite server entry in the client configuration
// and returns the entry written.
func Register(opts Options) (MCPServerConfig, error) {
	if opts.ConfigPath == "" {
		return MCPServerConfig{}, fmt.Errorf("client config path is required")
	}
	name := opts.ServerName
	if name == "" {
		name = DefaultServerName
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		found, err := FindBinary("mcp-server-lite")
		if err != nil {
			return MCPServerConfig{}, err
		}
		binaryPath = found
	}

	cfg, err := LoadClientConfig(opts.ConfigPath)
	if err != nil {
		return MCPServerConfig{}, err
	}

	entry := MCPServerConfig{Command: binaryPath, Env: map[string]string{}}
	if opts.DataDir != "" {
		entry.Env["PATHLAB_DATA_DIR"] = opts.DataDir
	}
	if opts.LabID != "" {
		entry.Env["PATHLAB_LAB_ID"] = opts.LabID
	}
	if opts.RedisURL != "" {
		entry.Env["PATHLAB_REDIS_URL"] = opts.RedisURL
	}
	if len(entry.Env) == 0 {
		entry.Env = nil
	}
	cfg.MCPServers[name] = entry

	if err := SaveClientConfig(opts.ConfigPath, cfg); err != nil {
		return MCPServerConfig{}, err
	}
	return entry, nil
}

// Unregister removes the named server entry. It reports whether an entry
// was removed.
func Unregister(configPath, name string) (bool, error) {
	if name == "" {
		name = DefaultServerName
	}
	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[name]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, name)
	return true, SaveClientConfig(configPath, cfg)
}

// FindBinary looks for binaryName on PATH and in common build locations.
func FindBinary(binaryName string) (string, error) {
	if path, err := exec.LookPath(binaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + binaryName,
		"./build/" + binaryName,
		filepath.Join(home, ".local", "bin", binaryName),
		"/usr/local/bin/" + binaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", binaryName)
}
