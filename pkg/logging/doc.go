// Package logging provides subsystem-tagged structured logging for spacegun.
//
// The package wraps log/slog with a small, printf-style API so call sites stay
// short while records remain structured:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//
//	logging.Info("Scheduler", "Registered cron %s (%s)", name, expression)
//	logging.Warn("Planner", "Deployment %s has no image, skipping", name)
//	logging.Error("StepExecutor", err, "Step %s failed", step)
//
// Every record carries a "subsystem" attribute and, for Error, an "error"
// attribute. InitForCLI writes slog text records; InitForJSON writes JSON
// records and is used by `spacegun serve`.
//
// # Controller-Runtime Integration
//
// Both initializers also install the handler as the controller-runtime logger,
// so Kubernetes client messages share the configured format and level.
//
// # Thread Safety
//
// Logging is safe from multiple goroutines. Re-initialization swaps the
// logger atomically.
package logging
