package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/MKhiriev/go-fish-log/models"
)

// memoryDB is a volatile Local Store used for guest demos and tests. Every
// repository built on the same memoryDB shares one lock so trip cascades stay
// consistent with the child tables.
type memoryDB struct {
	mu          sync.RWMutex
	trips       map[int64]models.Trip
	weatherLogs map[string]models.WeatherLog
	fishCaught  map[string]models.FishCaught
	kv          map[string]string
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		trips:       make(map[int64]models.Trip),
		weatherLogs: make(map[string]models.WeatherLog),
		fishCaught:  make(map[string]models.FishCaught),
		kv:          make(map[string]string),
	}
}

// ── trips ───────────────────────────────────────────────────────────────────

type memoryTripRepository struct {
	db *memoryDB
}

func (r *memoryTripRepository) SaveTrip(_ context.Context, trip models.Trip) error {
	if trip.ID == 0 {
		return ErrInvalidRecord
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.trips[trip.ID] = trip
	return nil
}

func (r *memoryTripRepository) GetTrip(_ context.Context, id int64) (models.Trip, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	trip, ok := r.db.trips[id]
	if !ok {
		return models.Trip{}, ErrNotFound
	}
	return trip, nil
}

func (r *memoryTripRepository) GetAllTrips(_ context.Context) ([]models.Trip, error) {
	return r.filter(func(models.Trip) bool { return true }), nil
}

func (r *memoryTripRepository) GetTripsByDate(_ context.Context, date string) ([]models.Trip, error) {
	return r.filter(func(t models.Trip) bool { return t.Date == date }), nil
}

func (r *memoryTripRepository) filter(keep func(models.Trip) bool) []models.Trip {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.Trip, 0, len(r.db.trips))
	for _, t := range r.db.trips {
		if keep(t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b models.Trip) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func (r *memoryTripRepository) DeleteTrip(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	delete(r.db.trips, id)
	for k, w := range r.db.weatherLogs {
		if w.TripID == id {
			delete(r.db.weatherLogs, k)
		}
	}
	for k, f := range r.db.fishCaught {
		if f.TripID == id {
			delete(r.db.fishCaught, k)
		}
	}
	return nil
}

// ── children ────────────────────────────────────────────────────────────────

type memoryChildRepository[T models.TripChild] struct {
	db    *memoryDB
	items func(*memoryDB) map[string]T
}

func (r *memoryChildRepository[T]) Save(_ context.Context, item T) error {
	if item.LocalID() == "" {
		return ErrInvalidRecord
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.items(r.db)[item.LocalID()] = item
	return nil
}

func (r *memoryChildRepository[T]) Get(_ context.Context, id string) (T, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	item, ok := r.items(r.db)[id]
	if !ok {
		return item, ErrNotFound
	}
	return item, nil
}

func (r *memoryChildRepository[T]) GetAll(_ context.Context) ([]T, error) {
	return r.filter(func(T) bool { return true }), nil
}

func (r *memoryChildRepository[T]) GetByTrip(_ context.Context, tripID int64) ([]T, error) {
	return r.filter(func(item T) bool { return item.ParentID() == tripID }), nil
}

func (r *memoryChildRepository[T]) filter(keep func(T) bool) []T {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]T, 0)
	for _, item := range r.items(r.db) {
		if keep(item) {
			out = append(out, item)
		}
	}
	slices.SortFunc(out, func(a, b T) int {
		switch {
		case a.ParentID() < b.ParentID():
			return -1
		case a.ParentID() > b.ParentID():
			return 1
		}
		return strings.Compare(a.LocalID(), b.LocalID())
	})
	return out
}

func (r *memoryChildRepository[T]) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.items(r.db), id)
	return nil
}

func (r *memoryChildRepository[T]) DeleteOrphans(_ context.Context) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var removed int64
	items := r.items(r.db)
	for k, item := range items {
		if _, ok := r.db.trips[item.ParentID()]; !ok {
			delete(items, k)
			removed++
		}
	}
	return removed, nil
}

// ── key/value ───────────────────────────────────────────────────────────────

type memoryKeyValueRepository struct {
	db *memoryDB
}

func (r *memoryKeyValueRepository) Get(_ context.Context, key string) (string, bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	v, ok := r.db.kv[key]
	return v, ok, nil
}

func (r *memoryKeyValueRepository) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidRecord
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.kv[key] = value
	return nil
}

func (r *memoryKeyValueRepository) Delete(_ context.Context, key string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.kv, key)
	return nil
}

func (r *memoryKeyValueRepository) ListKeys(_ context.Context, prefix string) ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	keys := make([]string, 0)
	for k := range r.db.kv {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (r *memoryKeyValueRepository) DeleteByPrefix(_ context.Context, prefix string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var removed int64
	for k := range r.db.kv {
		if strings.HasPrefix(k, prefix) {
			delete(r.db.kv, k)
			removed++
		}
	}
	return removed, nil
}
