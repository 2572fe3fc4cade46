// Package api is the dispatch layer between spacegun's core and its
// collaborators.
//
// Every collaborator operation (cluster reads and writes, registry lookups,
// notifications, artifact storage, pipeline runs) is registered in a
// Registry under a (module, procedure) pair and invoked through a Transport.
// The core never calls an adapter directly; it holds one of the typed clients
// of this package, which implement the domain interfaces on top of Call.
//
// # Execution contexts
//
// The ExecutionContext is chosen once, when the process starts:
//
//   - Standalone: adapters are registered locally and calls go through the
//     LocalTransport.
//   - Server: same as standalone, and the Registry is additionally exposed
//     over HTTP by internal/server.
//   - Client: nothing is registered locally; calls are sent with the
//     HTTPTransport to a server as POST /api/{module}/{procedure}.
//
// Parameters and results are JSON in both transports, so a procedure
// behaves the same whether it runs in-process or remotely.
//
// # Errors
//
// Errors cross the wire as a message plus a code. NotFound, Conflict and
// BadRequest codes unwrap to ErrNotFound, scheduler.ErrAlreadyRunning and
// ErrBadRequest so that callers can keep using errors.Is.
package api
