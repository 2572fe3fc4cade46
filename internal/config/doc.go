// Package config loads spacegun's configuration and provides the file
// storage and validation helpers shared by the loaders of other packages.
//
// # Configuration Directory
//
// Configuration is read from a single directory, ~/.config/spacegun by
// default or the directory passed with --config-path. It contains:
//   - config.yaml, the main configuration file
//   - pipelines/, one YAML file per pipeline
//   - artifacts/, saved snapshots (unless artifactsPath points elsewhere)
//
// # Configuration Structure
//
//	mode: standalone          # standalone | client | server
//	logLevel: info
//	kubeconfig: ~/.kube/config
//	clusters: [dev, live]     # kube contexts, empty means every context
//	docker:
//	  url: https://registry.example.com
//	  username: robot
//	  password: secret
//	slack:
//	  webhookURL: https://hooks.slack.com/services/...
//	server:
//	  host: localhost
//	  port: 3000
//	cacheTTL: 5m
//	artifactsPath: /var/lib/spacegun/artifacts
//
// Missing keys keep their defaults (see DefaultConfig).
//
// # Storage
//
// Storage persists named YAML blobs below a root directory, one
// subdirectory per category. Names are sanitized before they are used as
// file names.
//
//	storage := config.NewStorageWithPath("/tmp/artifacts")
//	err := storage.Save("snapshots/live", "2024-06-01", data)
//	names, err := storage.List("snapshots/live")
//
// # Validation
//
// ValidationErrors collects field level problems so that a loader can report
// all of them at once; ConfigurationErrorCollection does the same per file.
package config
