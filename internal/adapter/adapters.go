package adapter

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-fish-log/internal/config"
	"github.com/MKhiriev/go-fish-log/internal/logger"
)

// MemoryDSN selects the in-process Remote Store.
const MemoryDSN = "memory"

// Adapters bundles the hosted-side collaborators of the sync core.
type Adapters struct {
	Remote RemoteStore
	Blobs  BlobStore
	Probe  ConnectivityProbe

	close func() error
}

// NewAdapters builds every adapter from configuration: Postgres or memory
// for documents, S3 or memory for photos and the HTTP connectivity probe.
func NewAdapters(ctx context.Context, cfg *config.StructuredConfig, log *logger.Logger) (*Adapters, error) {
	a := &Adapters{close: func() error { return nil }}

	if cfg.Storage.Remote.DSN == "" || cfg.Storage.Remote.DSN == MemoryDSN {
		log.Info().Msg("using in-memory remote store")
		a.Remote = NewMemoryRemoteStore(cfg.App.IndexHelpURL)
	} else {
		db, err := NewConnectPostgres(ctx, cfg.Storage.Remote, log)
		if err != nil {
			return nil, fmt.Errorf("remote store connection error: %w", err)
		}
		a.Remote = NewPostgresRemoteStore(db, cfg.App.IndexHelpURL, log)
		a.close = db.Close
	}

	if cfg.Storage.Blob.Bucket == "" {
		log.Info().Msg("using in-memory blob store")
		a.Blobs = NewMemoryBlobStore()
	} else {
		blobs, err := NewS3BlobStore(ctx, cfg.Storage.Blob, log)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("blob store error: %w", err)
		}
		a.Blobs = blobs
	}

	probe, err := NewHTTPProbe(cfg.Adapter)
	if err != nil {
		a.close()
		return nil, err
	}
	a.Probe = probe

	return a, nil
}

// Close releases the Remote Store connection, if any.
func (a *Adapters) Close() error {
	return a.close()
}
