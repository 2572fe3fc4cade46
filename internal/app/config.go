package app

import (
	"spacegun/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug enables debug logging regardless of the configured level.
	Debug bool

	// Silent discards log output. Used by commands whose stdout is data.
	Silent bool

	// ConfigPath is the directory holding config.yaml and pipelines/.
	// Empty means the default directory.
	ConfigPath string

	// Mode overrides the configured mode when set.
	Mode config.Mode

	// Spacegun is the loaded config.yaml. When set before NewApplication,
	// loading is skipped.
	Spacegun *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}

// mode returns the effective mode.
func (c *Config) mode() config.Mode {
	if c.Mode != "" {
		return c.Mode
	}
	if c.Spacegun != nil {
		return c.Spacegun.Mode
	}
	return config.ModeStandalone
}
