package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/crypto"
	"github.com/MKhiriev/go-fish-log/internal/events"
	"github.com/MKhiriev/go-fish-log/internal/mock"
	"github.com/MKhiriev/go-fish-log/internal/store"
	"github.com/MKhiriev/go-fish-log/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func tripPayload(id int64, water string) models.Document {
	return models.Document{"id": id, "date": "2024-03-01", "water": water, "hours": 2.0}
}

func waitDrain(t *testing.T, task *Task[DrainResult]) DrainResult {
	t.Helper()
	require.NotNil(t, task)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := task.Wait(ctx)
	require.NoError(t, err)
	return res
}

// ── Enqueue ──────────────────────────────────────────────────────────────────

func TestSyncQueue_Enqueue_WithoutUser(t *testing.T) {
	h := newHarness(t, Offline)

	_, _, err := h.queue.Enqueue(context.Background(), models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake"))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, 0, h.queue.Size())
}

func TestSyncQueue_Enqueue_RejectsBadInput(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))

	_, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.Collection("boats"), tripPayload(1, "Lake"))
	assert.Error(t, err)

	_, _, err = h.queue.Enqueue(ctx, models.SyncOperation("upsert"), models.CollectionTrips, tripPayload(1, "Lake"))
	assert.ErrorIs(t, err, errUnknownOperation)

	assert.Equal(t, 0, h.queue.Size())
}

func TestSyncQueue_Enqueue_OfflinePersistsPerUser(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))

	entry, task, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake"))
	require.NoError(t, err)
	assert.Nil(t, task, "offline enqueue must not start a drain")
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "1", entry.LocalID())

	_, found, err := h.storages.KeyValues.Get(ctx, models.SyncQueueKey(testUser))
	require.NoError(t, err)
	assert.True(t, found)

	// новый экземпляр очереди поднимает сохранённые записи
	reloaded := NewSyncQueue(h.storages.KeyValues, h.engine, h.remote, h.mapper, h.status, nil)
	defer reloaded.Close()
	require.NoError(t, reloaded.SwitchUser(ctx, testUser))
	require.Len(t, reloaded.Entries(), 1)
	assert.Equal(t, entry.ID, reloaded.Entries()[0].ID)

	// очереди разных пользователей не смешиваются
	require.NoError(t, reloaded.SwitchUser(ctx, "user-2"))
	assert.Equal(t, 0, reloaded.Size())
}

func TestSyncQueue_Enqueue_EncryptsWhenKeyReady(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.engine.SetDeterministicKey(ctx, testUser, testEmail))
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))

	plain := tripPayload(1, "Lake")
	entry, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, plain)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(entry.Payload.String("water"), crypto.CiphertextPrefix))
	assert.Equal(t, "Lake", plain["water"], "caller's payload must stay untouched")
}

func TestSyncQueue_Enqueue_PublishesSize(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	ch, cancel := h.bus.Subscribe(events.SyncQueueSize)
	defer cancel()

	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	_, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake"))
	require.NoError(t, err)

	var last events.QueueSizeChanged
	for last.Size != 1 {
		ev := waitEvent(t, ch, events.SyncQueueSize)
		last = ev.Payload.(events.QueueSizeChanged)
	}
	assert.Equal(t, testUser, last.UserID)
}

func TestSyncQueue_Enqueue_AfterClose(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	h.queue.Close()

	_, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake"))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

// ── Drain ────────────────────────────────────────────────────────────────────

func TestSyncQueue_Drain_OfflineDoesNothing(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	_, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake"))
	require.NoError(t, err)

	res := waitDrain(t, h.queue.Drain(ctx))
	assert.Equal(t, DrainResult{Remaining: 1}, res)
	assert.Equal(t, 0, h.remote.Writes())
}

func TestSyncQueue_Drain_AppliesInOrder(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))

	_, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake A"))
	require.NoError(t, err)
	_, _, err = h.queue.Enqueue(ctx, models.OperationUpdate, models.CollectionTrips, tripPayload(1, "Lake B"))
	require.NoError(t, err)

	h.status.SetConnectivity(Online)
	res := waitDrain(t, h.queue.Drain(ctx))

	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 0, h.queue.Size())

	docs := h.remote.Documents(models.CollectionTrips)
	require.Len(t, docs, 1)
	assert.Equal(t, "Lake B", docs[0].Data["water"])
	assert.Equal(t, testUser, docs[0].UserID)

	remoteID, found, err := h.mapper.Get(ctx, testUser, models.CollectionTrips, "1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, docs[0].ID, remoteID)

	_, found, err = h.storages.KeyValues.Get(ctx, models.SyncQueueKey(testUser))
	require.NoError(t, err)
	assert.False(t, found, "empty queue must not stay persisted")
}

func TestSyncQueue_Drain_UpdateWithoutRemoteIsConverted(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	_, _, err := h.queue.Enqueue(ctx, models.OperationUpdate, models.CollectionTrips, tripPayload(5, "Pond"))
	require.NoError(t, err)

	h.status.SetConnectivity(Online)
	res := waitDrain(t, h.queue.Drain(ctx))

	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Converted)
	assert.Equal(t, 0, res.Failed)
	assert.Len(t, h.remote.Documents(models.CollectionTrips), 1)
}

func TestSyncQueue_Drain_DeleteOfUnsyncedRecordSucceeds(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	_, _, err := h.queue.Enqueue(ctx, models.OperationDelete, models.CollectionWeatherLogs,
		models.Document{"id": "9-abc", "userId": testUser})
	require.NoError(t, err)

	h.status.SetConnectivity(Online)
	res := waitDrain(t, h.queue.Drain(ctx))

	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 0, h.queue.Size())
}

func TestSyncQueue_Drain_FailedEntriesStay(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	_, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake"))
	require.NoError(t, err)

	h.remote.SetFailWrites(true)
	h.status.SetConnectivity(Online)

	res := waitDrain(t, h.queue.Drain(ctx))
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, 1, h.queue.Size())

	h.remote.SetFailWrites(false)
	res = waitDrain(t, h.queue.Drain(ctx))
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 0, h.queue.Size())
}

func TestSyncQueue_Drain_FailureHoldsBackSameRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	kv := store.NewMemoryStorages().KeyValues
	engine, err := crypto.NewEngine(kv, "pepper", crypto.KDFSHA256)
	require.NoError(t, err)
	status := NewStatus(Offline)
	remote := mock.NewMockRemoteStore(ctrl)

	q := NewSyncQueue(kv, engine, remote, NewIDMapper(kv), status, nil).(*syncQueue)
	q.retry = time.Hour
	defer q.Close()

	require.NoError(t, q.SwitchUser(ctx, testUser))
	for _, p := range []struct {
		op      models.SyncOperation
		payload models.Document
	}{
		{models.OperationCreate, tripPayload(1, "A")},
		{models.OperationUpdate, tripPayload(1, "A2")},
		{models.OperationCreate, tripPayload(2, "B")},
	} {
		_, _, err = q.Enqueue(ctx, p.op, models.CollectionTrips, p.payload)
		require.NoError(t, err)
	}

	// обновление trip 1 не должно уйти раньше упавшего create
	remote.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	gomock.InOrder(
		remote.EXPECT().Add(gomock.Any(), models.CollectionTrips, gomock.Any()).Return("", adapter.ErrUnavailable),
		remote.EXPECT().Add(gomock.Any(), models.CollectionTrips, gomock.Any()).Return("doc-2", nil),
	)

	status.SetConnectivity(Online)
	res := waitDrain(t, q.Drain(ctx))

	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 2, res.Remaining)

	left := q.Entries()
	require.Len(t, left, 2)
	assert.Equal(t, models.OperationCreate, left[0].Operation)
	assert.Equal(t, models.OperationUpdate, left[1].Operation)
}

func TestSyncQueue_Drain_SharesRunningDrain(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	_, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake"))
	require.NoError(t, err)

	h.status.SetConnectivity(Online)
	first := h.queue.Drain(ctx)
	second := h.queue.Drain(ctx)

	r1 := waitDrain(t, first)
	waitDrain(t, second)

	assert.Equal(t, 1, r1.Applied)
	assert.Equal(t, 0, h.queue.Size())
	assert.Len(t, h.remote.Documents(models.CollectionTrips), 1)
}

// heldRemote задерживает первую запись до release.
type heldRemote struct {
	*adapter.MemoryRemoteStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *heldRemote) Add(ctx context.Context, collection models.Collection, data models.Document) (string, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		<-r.release
	}
	return r.MemoryRemoteStore.Add(ctx, collection, data)
}

func TestSyncQueue_Drain_AfterSwitchUserDrainsNewUser(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	const otherUser = "user-2"

	// у второго пользователя уже есть сохранённая очередь
	require.NoError(t, h.queue.SwitchUser(ctx, otherUser))
	_, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(2, "Sea"))
	require.NoError(t, err)
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	_, _, err = h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake"))
	require.NoError(t, err)

	held := &heldRemote{MemoryRemoteStore: h.remote, entered: make(chan struct{}), release: make(chan struct{})}
	h.queue.writer.remote = held
	h.status.SetConnectivity(Online)

	first := h.queue.Drain(ctx)
	select {
	case <-held.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first drain did not reach the remote store")
	}

	require.NoError(t, h.queue.SwitchUser(ctx, otherUser))
	second := h.queue.Drain(ctx)
	assert.NotSame(t, first, second, "a drain of another user must not be shared")

	close(held.release)
	waitDrain(t, first)
	res := waitDrain(t, second)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 0, h.queue.Size())

	owners := make(map[string]int)
	for _, doc := range h.remote.Documents(models.CollectionTrips) {
		owners[doc.UserID]++
	}
	assert.Equal(t, map[string]int{testUser: 1, otherUser: 1}, owners)
}

// ── DrainAggressive ──────────────────────────────────────────────────────────

func TestSyncQueue_DrainAggressive_Offline(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))

	_, err := h.queue.DrainAggressive(ctx)
	assert.ErrorIs(t, err, ErrOffline)
}

func TestSyncQueue_DrainAggressive_QuarantinesStuckEntries(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	_, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake"))
	require.NoError(t, err)

	h.remote.SetFailWrites(true)
	h.status.SetConnectivity(Online)

	res, err := h.queue.DrainAggressive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Quarantined)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 0, h.queue.Size())

	keys, err := h.storages.KeyValues.ListKeys(ctx, models.QuarantinePrefix(testUser))
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

// enqueueOnSecondAdd ставит новую запись в очередь во время второго прохода.
type enqueueOnSecondAdd struct {
	*adapter.MemoryRemoteStore
	queue *syncQueue
	adds  int
}

func (r *enqueueOnSecondAdd) Add(ctx context.Context, _ models.Collection, _ models.Document) (string, error) {
	r.adds++
	if r.adds == 2 {
		if _, _, err := r.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(2, "Late")); err != nil {
			return "", err
		}
	}
	return "", adapter.ErrUnavailable
}

func TestSyncQueue_DrainAggressive_KeepsEntriesItNeverAttempted(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	_, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake"))
	require.NoError(t, err)

	h.queue.writer.remote = &enqueueOnSecondAdd{MemoryRemoteStore: h.remote, queue: h.queue}
	h.status.SetConnectivity(Online)

	res, err := h.queue.DrainAggressive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Quarantined)
	assert.Equal(t, 1, res.Remaining)

	entries := h.queue.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "2", entries[0].LocalID(), "the late entry stays queued")

	keys, err := h.storages.KeyValues.ListKeys(ctx, models.QuarantinePrefix(testUser))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	raw, _, err := h.storages.KeyValues.Get(ctx, keys[0])
	require.NoError(t, err)
	assert.Contains(t, raw, "Lake")
	assert.NotContains(t, raw, "Late")
}

// ── SwitchUser / Clear ───────────────────────────────────────────────────────

func TestSyncQueue_SwitchUser_QuarantinesUndecodableQueue(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.storages.KeyValues.Set(ctx, models.SyncQueueKey(testUser), "{broken"))

	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	assert.Equal(t, 0, h.queue.Size())

	keys, err := h.storages.KeyValues.ListKeys(ctx, models.QuarantinePrefix(testUser))
	require.NoError(t, err)
	require.Len(t, keys, 1)

	raw, _, err := h.storages.KeyValues.Get(ctx, keys[0])
	require.NoError(t, err)
	assert.Equal(t, "{broken", raw)

	_, found, err := h.storages.KeyValues.Get(ctx, models.SyncQueueKey(testUser))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSyncQueue_Clear(t *testing.T) {
	h := newHarness(t, Offline)
	ctx := context.Background()
	require.NoError(t, h.queue.SwitchUser(ctx, testUser))
	_, _, err := h.queue.Enqueue(ctx, models.OperationCreate, models.CollectionTrips, tripPayload(1, "Lake"))
	require.NoError(t, err)

	require.NoError(t, h.queue.Clear(ctx))
	assert.Equal(t, 0, h.queue.Size())
	assert.Equal(t, DrainIdle, h.queue.State())
}
