// Package server runs the daemon's HTTP API.
//
// It owns the listener lifecycle: startup, serving until the context ends
// and graceful shutdown of in-flight requests.
package server
