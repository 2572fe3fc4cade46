package config

import "time"

const (
	// DefaultServerPort is the port of the dispatch server.
	DefaultServerPort = 3000

	// DefaultCacheTTL is how long repository reads are memoized.
	DefaultCacheTTL = 5 * time.Minute

	// PipelinesDir is the subdirectory holding pipeline definitions.
	PipelinesDir = "pipelines"

	// ArtifactsDir is the default subdirectory for saved artifacts.
	ArtifactsDir = "artifacts"
)

// DefaultConfig returns the configuration used for keys config.yaml omits.
func DefaultConfig() Config {
	return Config{
		Mode:     ModeStandalone,
		LogLevel: "info",
		Server: ServerConfig{
			Host: "localhost",
			Port: DefaultServerPort,
		},
		CacheTTL: DefaultCacheTTL,
	}
}
