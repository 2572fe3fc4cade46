// Package server serves a dispatch registry over HTTP.
//
// Routes:
//
//	POST /api/{module}/{procedure}   invoke a procedure, JSON in and out
//	GET  /api                        list registered procedures
//	GET  /healthz                    liveness
//	GET  /metrics                    Prometheus metrics
//
// Failed calls answer with {"code": ..., "error": ...} and a status derived
// from the error: 404 for unknown procedures and resources, 409 when a
// pipeline is already running, 400 for undecodable parameters and 500
// otherwise. api.HTTPTransport turns these back into errors.
package server
