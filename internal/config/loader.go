package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"spacegun/pkg/logging"
)

const (
	userConfigDir  = ".config/spacegun"
	configFileName = "config.yaml"
)

var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigPath returns ~/.config/spacegun.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from configPath over DefaultConfig. A missing
// file is not an error.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := DefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	if err := ValidateConfig(config); err != nil {
		return Config{}, FormatValidationError("config", configFilePath, err)
	}

	config.Kubeconfig = expandHome(config.Kubeconfig)
	config.ArtifactsPath = expandHome(config.ArtifactsPath)

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// ValidateConfig checks the loaded values.
func ValidateConfig(c Config) error {
	var errs ValidationErrors

	errs.Append("mode", ValidateOneOf("mode", string(c.Mode), []string{string(ModeStandalone), string(ModeClient), string(ModeServer)}))
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs.Add("server.port", "must be between 1 and 65535", c.Server.Port)
	}
	if c.Mode == ModeClient {
		errs.Append("server.host", ValidateRequired("server.host", c.Server.Host, "client mode"))
	}
	if c.CacheTTL < 0 {
		errs.Add("cacheTTL", "must not be negative", c.CacheTTL)
	}
	if c.Slack.WebhookURL != "" {
		errs.Append("slack.webhookURL", ValidateURL("slack.webhookURL", c.Slack.WebhookURL))
	}
	if c.Docker.URL != "" {
		errs.Append("docker.url", ValidateURL("docker.url", c.Docker.URL))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// PipelinesPath returns the pipeline directory below configPath.
func PipelinesPath(configPath string) string {
	return filepath.Join(configPath, PipelinesDir)
}

// ResolveArtifactsPath returns c.ArtifactsPath or the default below configPath.
func (c Config) ResolveArtifactsPath(configPath string) string {
	if c.ArtifactsPath != "" {
		return c.ArtifactsPath
	}
	return filepath.Join(configPath, ArtifactsDir)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := osUserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
