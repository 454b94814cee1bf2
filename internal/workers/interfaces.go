// Package workers provides abstractions for managing and running
// background workers in the application.
// It defines the Worker interface and a Workers aggregate that allows
// starting and stopping multiple workers in a unified way.
package workers

import "context"

// Worker is the interface that must be implemented by any background worker.
//
// Run starts the worker and returns without blocking; the work continues on
// goroutines owned by the worker until ctx ends or Stop is called. Stop
// waits for those goroutines to exit and is safe to call more than once.
//
// Example implementation:
//
//	type MyWorker struct{ cancel context.CancelFunc }
//
//	func (w *MyWorker) Run(ctx context.Context) {
//	    ctx, w.cancel = context.WithCancel(ctx)
//	    go loop(ctx)
//	}
type Worker interface {
	Run(ctx context.Context)
	Stop()
}
