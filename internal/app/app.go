package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/server"
	"github.com/MKhiriev/go-fish-log/internal/workers"
)

var errNoServer = errors.New("app: no server provided")

// Resource is released once the application stops. Resources are closed in
// reverse registration order.
type Resource struct {
	Name  string
	Close func() error
}

type App struct {
	server    server.Server
	workers   workers.Worker
	resources []Resource
	logger    *logger.Logger
}

func NewApp(srv server.Server, w workers.Worker, log *logger.Logger, resources ...Resource) (*App, error) {
	if srv == nil {
		return nil, errNoServer
	}
	return &App{
		server:    srv,
		workers:   w,
		resources: resources,
		logger:    log,
	}, nil
}

// Run starts the workers, then serves until ctx ends. Workers are stopped
// and resources released whether serving ended cleanly or not.
func (a *App) Run(ctx context.Context) error {
	if a.workers != nil {
		a.workers.Run(ctx)
		a.logger.Info().Msg("background workers started")
	}

	serveErr := a.server.Run(ctx)
	if serveErr != nil {
		a.logger.Error().Err(serveErr).Msg("server stopped with error")
		serveErr = fmt.Errorf("run server: %w", serveErr)
	}

	return errors.Join(serveErr, a.shutdown())
}

func (a *App) shutdown() error {
	if a.workers != nil {
		a.workers.Stop()
		a.logger.Info().Msg("background workers stopped")
	}

	var errs []error
	for i := len(a.resources) - 1; i >= 0; i-- {
		r := a.resources[i]
		if r.Close == nil {
			continue
		}
		if err := r.Close(); err != nil {
			a.logger.Warn().Err(err).Str("resource", r.Name).Msg("error closing resource")
			errs = append(errs, fmt.Errorf("close %s: %w", r.Name, err))
		}
	}

	return errors.Join(errs...)
}
