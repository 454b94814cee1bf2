package workers

import (
	"context"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/config"
	"github.com/MKhiriev/go-fish-log/internal/service"
)

type Workers struct {
	workers []Worker
}

// NewWorkers assembles the background workers of the daemon: the
// connectivity probe feeding the data service and the periodic safety sync.
func NewWorkers(services *service.Services, probe adapter.ConnectivityProbe, cfg config.ClientWorkers) *Workers {
	return &Workers{workers: []Worker{
		NewConnectivityWorker(probe, services.DataService, cfg.ProbeInterval),
		NewSyncWorker(services.SyncJob, cfg.SyncInterval),
	}}
}

func (w *Workers) Run(ctx context.Context) {
	for _, worker := range w.workers {
		worker.Run(ctx)
	}
}

// Stop stops the workers in reverse start order.
func (w *Workers) Stop() {
	for i := len(w.workers) - 1; i >= 0; i-- {
		w.workers[i].Stop()
	}
}
