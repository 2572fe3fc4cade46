// Package app bootstraps spacegun: it loads config.yaml, sets up logging and
// wires the adapters behind the dispatch registry.
//
// # Modes
//
// The configured mode decides where procedures run:
//
//   - standalone: every adapter is registered in process and commands call
//     them through a local transport.
//   - server: as standalone, and Serve additionally exposes the registry over
//     HTTP so clients can reach it.
//   - client: no adapter is registered; every procedure is forwarded to the
//     server at server.host:server.port.
//
// Commands never talk to an adapter directly. They use the clients in
// Services, so the same command works in every mode.
//
// # Degraded start
//
// A missing kubeconfig or an unreachable cluster is logged as a warning and
// leaves an empty cluster list. Pipelines that fail to load are skipped with
// a warning. Only a broken config.yaml or registry URL stops the bootstrap.
//
// # Serving
//
// Serve arms the pipeline crons and watches the pipeline directory for
// changes. In server mode it also listens for HTTP, preferring a socket
// passed by systemd. Readiness and shutdown are reported with sd_notify.
package app
