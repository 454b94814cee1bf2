package service

import (
	"context"
	"testing"
	"time"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/crypto"
	"github.com/MKhiriev/go-fish-log/internal/events"
	"github.com/MKhiriev/go-fish-log/internal/store"
	"github.com/MKhiriev/go-fish-log/internal/validators"
	"github.com/MKhiriev/go-fish-log/models"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "user-1"
	testEmail    = "angler@example.com"
	testHelpLink = "https://example.com/indexes"
)

// harness собирает sync core целиком на in-memory хранилищах.
type harness struct {
	storages *store.ClientStorages
	remote   *adapter.MemoryRemoteStore
	blobs    *adapter.MemoryBlobStore
	engine   crypto.Engine
	status   *Status
	bus      *events.Bus
	mapper   IDMapper
	queue    *syncQueue
	job      *migrationJob
	svc      *dataService
}

func newHarness(t *testing.T, initial Connectivity) *harness {
	t.Helper()

	h := &harness{
		storages: store.NewMemoryStorages(),
		remote:   adapter.NewMemoryRemoteStore(testHelpLink),
		blobs:    adapter.NewMemoryBlobStore(),
		status:   NewStatus(initial),
		bus:      events.NewBus(),
	}

	engine, err := crypto.NewEngine(h.storages.KeyValues, "test-pepper", crypto.KDFSHA256)
	require.NoError(t, err)
	h.engine = engine
	h.mapper = NewIDMapper(h.storages.KeyValues)

	h.queue = NewSyncQueue(h.storages.KeyValues, engine, h.remote, h.mapper, h.status, h.bus).(*syncQueue)
	// ретраи по таймеру в тестах не нужны
	h.queue.retry = time.Hour

	h.job = NewMigrationJob(h.storages.KeyValues, h.remote, engine, h.status, h.bus, testHelpLink).(*migrationJob)

	h.svc = NewDataService(h.storages, h.remote, h.blobs, engine, h.mapper, h.queue, h.job, h.status,
		validators.NewFishLogValidator(), DataServiceConfig{MergeChunkSize: 2, OrphanCeiling: 3}).(*dataService)

	t.Cleanup(func() {
		_ = h.job.Stop(context.Background())
		h.queue.Close()
		h.bus.Close()
	})
	return h
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, h.svc.SignIn(context.Background(), testUser, testEmail))
	require.True(t, h.engine.IsReady())
}

// drain waits for a full drain of the queue.
func (h *harness) drain(t *testing.T) DrainResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.svc.DrainSyncQueue(ctx).Wait(ctx)
	require.NoError(t, err)
	return res
}

func sampleTrip() models.Trip {
	return models.Trip{
		Date:     "2024-03-01",
		Water:    "Lake X",
		Location: "Bay",
		Hours:    3,
	}
}

func sampleWeather(tripID int64) models.WeatherLog {
	return models.WeatherLog{
		TripID:        tripID,
		TimeOfDay:     "morning",
		Sky:           "overcast",
		WindCondition: "light",
		WindDirection: "NW",
		WaterTemp:     "12",
		AirTemp:       "9",
	}
}

func sampleFish(tripID int64) models.FishCaught {
	return models.FishCaught{
		TripID:  tripID,
		Species: "Pike",
		Length:  "64",
		Weight:  "2.1",
		Time:    "07:40",
		Gear:    []string{"Lure|Rapala|X-Rap|Perch"},
	}
}

func waitEvent(t *testing.T, ch <-chan events.Event, name events.Name) events.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "event channel closed before %s", name)
			if ev.Name == name {
				return ev
			}
		case <-timeout:
			t.Fatalf("event %s was not published", name)
		}
	}
}
