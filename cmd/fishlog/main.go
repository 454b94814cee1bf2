package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/app"
	"github.com/MKhiriev/go-fish-log/internal/config"
	"github.com/MKhiriev/go-fish-log/internal/events"
	"github.com/MKhiriev/go-fish-log/internal/handler"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/server"
	"github.com/MKhiriev/go-fish-log/internal/service"
	"github.com/MKhiriev/go-fish-log/internal/store"
	"github.com/MKhiriev/go-fish-log/internal/workers"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	bootLog := logger.NewLogger("fishlog")
	structured, err := config.GetStructuredConfig()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("error getting configs")
	}
	cfg, err := config.NewClientConfig(structured)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("invalid configs")
	}
	if cfg.App.Version == "" {
		cfg.App.Version = buildVersion
	}
	// adapters read the structured view; carry the normalized values over
	structured.App.IndexHelpURL = cfg.App.IndexHelpURL
	structured.Storage.Remote.DSN = cfg.Storage.Remote.DSN
	structured.Adapter.RequestTimeout = cfg.Adapter.RequestTimeout

	log := logger.NewClientLogger("fishlog", cfg.Storage.Local.LogFile)
	log.Debug().Str("http_address", cfg.Server.HTTPAddress).Str("local_dsn", cfg.Storage.Local.DSN).Msg("received configs")

	storages, err := store.NewClientStorages(ctx, cfg.Storage.Local, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create local storage")
	}

	adapters, err := adapter.NewAdapters(ctx, structured, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create adapters")
	}

	bus := events.NewBus()

	services, err := service.NewServices(storages, adapters, bus, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create services")
	}

	handlers, err := handler.NewHandlers(services, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create handlers")
	}

	srv, err := server.NewServer(handlers, cfg.Server, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create server")
	}

	application, err := app.NewApp(srv, workers.NewWorkers(services, adapters.Probe, cfg.Workers), log,
		app.Resource{Name: "storages", Close: storages.Close},
		app.Resource{Name: "adapters", Close: adapters.Close},
		app.Resource{Name: "events", Close: func() error { bus.Close(); return nil }},
		app.Resource{Name: "services", Close: func() error { services.Close(); return nil }},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("init app error")
	}

	if err = application.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("app run error")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
