package server

import "context"

// Server defines the lifecycle contract of the API server.
type Server interface {
	// Run serves requests until ctx ends, then shuts down gracefully. It
	// returns early with an error if the listener cannot be started.
	Run(ctx context.Context) error

	// Shutdown stops accepting connections and waits for in-flight requests
	// until ctx ends.
	Shutdown(ctx context.Context) error
}
