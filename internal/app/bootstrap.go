package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"spacegun/internal/config"
	"spacegun/pkg/logging"
)

// Application represents the main application structure that bootstraps and
// runs spacegun.
//
// Example usage:
//
//	cfg := app.NewConfig(false, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Serve(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration, sets up logging and initializes
// all services.
//
// Logging goes to stderr as text until config.yaml is read. Afterwards the
// configured level applies, and server mode switches to JSON output.
func NewApplication(cfg *Config) (*Application, error) {
	return NewApplicationWithAdapters(cfg, Adapters{})
}

// NewApplicationWithAdapters is NewApplication with some repositories
// supplied by the caller.
func NewApplicationWithAdapters(cfg *Config, adapters Adapters) (*Application, error) {
	var logOutput io.Writer = os.Stderr
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(levelFor(cfg, ""), logOutput)

	if cfg.ConfigPath == "" {
		path, err := config.GetDefaultConfigPath()
		if err != nil {
			return nil, err
		}
		cfg.ConfigPath = path
	}

	if cfg.Spacegun == nil {
		loaded, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration from %s", cfg.ConfigPath)
			return nil, fmt.Errorf("failed to load configuration from %s: %w", cfg.ConfigPath, err)
		}
		cfg.Spacegun = &loaded
	}

	level := levelFor(cfg, cfg.Spacegun.LogLevel)
	if cfg.mode() == config.ModeServer && !cfg.Silent {
		logging.InitForJSON(level, logOutput)
	} else {
		logging.InitForCLI(level, logOutput)
	}

	services, err := InitializeServices(cfg, adapters)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func levelFor(cfg *Config, configured string) logging.LogLevel {
	if cfg.Debug {
		return logging.LevelDebug
	}
	if configured == "" {
		return logging.LevelInfo
	}
	return logging.ParseLevel(configured)
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Config returns the application configuration.
func (a *Application) Config() *Config {
	return a.config
}

// Serve arms the pipeline crons and, in server mode, serves the dispatch
// registry over HTTP. It blocks until ctx is done or the process is signaled.
func (a *Application) Serve(ctx context.Context) error {
	return runServe(ctx, a.config, a.services)
}
