package store

import (
	"context"

	"github.com/MKhiriev/go-fish-log/models"
)

// TripRepository persists trips in the Local Store.
type TripRepository interface {
	// SaveTrip inserts the trip or replaces the stored one with the same id.
	SaveTrip(ctx context.Context, trip models.Trip) error
	// GetTrip returns ErrNotFound when no trip has the given id.
	GetTrip(ctx context.Context, id int64) (models.Trip, error)
	GetAllTrips(ctx context.Context) ([]models.Trip, error)
	GetTripsByDate(ctx context.Context, date string) ([]models.Trip, error)
	// DeleteTrip removes the trip together with its weather logs and catches.
	DeleteTrip(ctx context.Context, id int64) error
}

// ChildRepository persists records that belong to a trip (weather logs and
// catches) keyed by their "<tripId>-<suffix>" id.
type ChildRepository[T models.TripChild] interface {
	Save(ctx context.Context, item T) error
	// Get returns ErrNotFound when no record has the given id.
	Get(ctx context.Context, id string) (T, error)
	GetAll(ctx context.Context) ([]T, error)
	GetByTrip(ctx context.Context, tripID int64) ([]T, error)
	Delete(ctx context.Context, id string) error
	// DeleteOrphans removes records whose trip no longer exists and reports
	// how many were removed.
	DeleteOrphans(ctx context.Context) (int64, error)
}

// WeatherLogRepository persists weather logs.
type WeatherLogRepository = ChildRepository[models.WeatherLog]

// FishCaughtRepository persists catches.
type FishCaughtRepository = ChildRepository[models.FishCaught]

// KeyValueRepository is the local persisted key/value table: salts, id
// mappings, sync queues, migration state and flags.
type KeyValueRepository interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// ListKeys returns every key starting with prefix in ascending order.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// DeleteByPrefix removes every key starting with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}
