// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/service"
)

const defaultProbeInterval = 15 * time.Second

// ConnectivitySetter receives the probed connectivity. [service.DataService]
// implements it.
type ConnectivitySetter interface {
	SetConnectivity(ctx context.Context, c service.Connectivity) *service.Task[service.DrainResult]
}

// ConnectivityWorker polls the hosted services and reports every result to
// the data service, which starts a queue drain when the process comes back
// online.
type ConnectivityWorker struct {
	probe    adapter.ConnectivityProbe
	target   ConnectivitySetter
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConnectivityWorker creates an idle worker. A non-positive interval
// defaults to 15 seconds.
func NewConnectivityWorker(probe adapter.ConnectivityProbe, target ConnectivitySetter, interval time.Duration) *ConnectivityWorker {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	return &ConnectivityWorker{probe: probe, target: target, interval: interval}
}

// Run probes once right away and then on every tick. A previous loop is
// stopped first.
func (w *ConnectivityWorker) Run(ctx context.Context) {
	w.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.ProbeOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.ProbeOnce(ctx)
			}
		}
	}()
}

// ProbeOnce asks the probe and forwards the answer.
func (w *ConnectivityWorker) ProbeOnce(ctx context.Context) service.Connectivity {
	c := service.Offline
	if w.probe.Online(ctx) {
		c = service.Online
	}
	if ctx.Err() != nil {
		return c
	}

	logger.FromContext(ctx).Debug().
		Str("func", "ConnectivityWorker.ProbeOnce").
		Str("connectivity", c.String()).
		Send()

	w.target.SetConnectivity(ctx, c)
	return c
}

func (w *ConnectivityWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}
