package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureUserID assigns a random user id when none is configured.
// It reports whether a new id was generated so the caller can persist it.
func (c *Config) EnsureUserID() bool {
	if c.Server.UserID != "" {
		return false
	}
	c.Server.UserID = uuid.NewString()
	return true
}

// Validate checks values that would make the client misbehave.
func (c *Config) Validate() error {
	switch c.Export.Format {
	case "stl", "ply":
	default:
		return fmt.Errorf("export format %q: must be stl or ply", c.Export.Format)
	}
	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		return fmt.Errorf("viewer size %dx%d must be positive", c.Viewer.Width, c.Viewer.Height)
	}
	if c.Viewer.FOV <= 0 || c.Viewer.FOV >= 180 {
		return fmt.Errorf("viewer fov %.1f out of range", c.Viewer.FOV)
	}
	if c.Viewer.Near <= 0 || c.Viewer.Far <= c.Viewer.Near {
		return fmt.Errorf("viewer clip planes near=%g far=%g invalid", c.Viewer.Near, c.Viewer.Far)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./liverscope.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "LiverScope")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "LiverScope")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "liverscope")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "liverscope")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
