package service

import (
	"fmt"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/config"
	"github.com/MKhiriev/go-fish-log/internal/crypto"
	"github.com/MKhiriev/go-fish-log/internal/events"
	"github.com/MKhiriev/go-fish-log/internal/store"
	"github.com/MKhiriev/go-fish-log/internal/validators"
)

type Services struct {
	Status       *Status
	Engine       crypto.Engine
	IDMapper     IDMapper
	SyncQueue    SyncQueue
	DataService  DataService
	MigrationJob MigrationJob
	SyncJob      SyncJob
}

// NewServices wires the sync core. The process starts offline in guest mode
// until the connectivity probe and a sign-in say otherwise.
func NewServices(storages *store.ClientStorages, adapters *adapter.Adapters, publisher events.Publisher, cfg *config.ClientConfig) (*Services, error) {
	engine, err := crypto.NewEngine(storages.KeyValues, cfg.App.Pepper, cfg.App.KDF)
	if err != nil {
		return nil, fmt.Errorf("encryption engine: %w", err)
	}

	status := NewStatus(Offline)
	mapper := NewIDMapper(storages.KeyValues)
	queue := NewSyncQueue(storages.KeyValues, engine, adapters.Remote, mapper, status, publisher)
	migration := NewMigrationJob(storages.KeyValues, adapters.Remote, engine, status, publisher, cfg.App.IndexHelpURL)

	data := NewDataService(storages, adapters.Remote, adapters.Blobs, engine, mapper, queue, migration, status,
		validators.NewFishLogValidator(),
		DataServiceConfig{
			MergeChunkSize: cfg.Workers.MergeChunkSize,
			OrphanCeiling:  cfg.Workers.OrphanCeiling,
		},
	)

	return &Services{
		Status:       status,
		Engine:       engine,
		IDMapper:     mapper,
		SyncQueue:    queue,
		DataService:  data,
		MigrationJob: migration,
		SyncJob:      NewSyncJob(queue, migration, storages.KeyValues, status),
	}, nil
}

// Close stops the background job and the queue's retries.
func (s *Services) Close() {
	s.SyncJob.Stop()
	s.SyncQueue.Close()
}
