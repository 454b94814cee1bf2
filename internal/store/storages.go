package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-fish-log/internal/config"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/models"
)

// MemoryDSN selects the volatile in-process Local Store.
const MemoryDSN = "memory"

// ClientStorages groups the Local Store repositories handed to the service
// layer.
type ClientStorages struct {
	Trips       TripRepository
	WeatherLogs WeatherLogRepository
	FishCaught  FishCaughtRepository
	KeyValues   KeyValueRepository

	db *DB
}

// NewClientStorages opens the Local Store named by cfg.DSN and brings its
// schema up to date. The "memory" DSN returns map-backed repositories and
// touches no database.
func NewClientStorages(ctx context.Context, cfg config.Local, logger *logger.Logger) (*ClientStorages, error) {
	logger.Info().Str("dsn", cfg.DSN).Msg("creating local storages...")

	if cfg.DSN == MemoryDSN {
		return NewMemoryStorages(), nil
	}

	db, err := NewConnectSQLite(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err = db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return NewSQLiteStorages(db, logger), nil
}

// NewSQLiteStorages wires every repository to an already migrated database.
func NewSQLiteStorages(db *DB, logger *logger.Logger) *ClientStorages {
	return &ClientStorages{
		Trips:       NewTripRepository(db, logger),
		WeatherLogs: NewWeatherLogRepository(db, logger),
		FishCaught:  NewFishCaughtRepository(db, logger),
		KeyValues:   NewKeyValueRepository(db, logger),
		db:          db,
	}
}

// NewMemoryStorages returns repositories backed by shared in-process maps.
func NewMemoryStorages() *ClientStorages {
	mdb := newMemoryDB()
	return &ClientStorages{
		Trips: &memoryTripRepository{db: mdb},
		WeatherLogs: &memoryChildRepository[models.WeatherLog]{
			db:    mdb,
			items: func(d *memoryDB) map[string]models.WeatherLog { return d.weatherLogs },
		},
		FishCaught: &memoryChildRepository[models.FishCaught]{
			db:    mdb,
			items: func(d *memoryDB) map[string]models.FishCaught { return d.fishCaught },
		},
		KeyValues: &memoryKeyValueRepository{db: mdb},
	}
}

// Close releases the underlying database, if any.
func (s *ClientStorages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
