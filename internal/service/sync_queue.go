package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/crypto"
	"github.com/MKhiriev/go-fish-log/internal/events"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/store"
	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/MKhiriev/go-fish-log/models"
)

// DefaultRetryDelay is the pause before a drain is retried while entries
// remain and the process is online.
const DefaultRetryDelay = time.Second

var errUnknownOperation = errors.New("unknown sync operation")

type syncQueue struct {
	kv     store.KeyValueRepository
	engine crypto.Engine
	writer *remoteWriter
	status *Status
	events events.Publisher
	retry  time.Duration

	mu           sync.Mutex
	userID       string
	entries      []models.SyncQueueEntry
	inflight     *Task[DrainResult]
	inflightUser string // owner of inflight
	timer        *time.Timer
	closed       bool
	wg           sync.WaitGroup
}

// NewSyncQueue returns an inactive queue; SwitchUser activates it.
func NewSyncQueue(
	kv store.KeyValueRepository,
	engine crypto.Engine,
	remote adapter.RemoteStore,
	mapper IDMapper,
	status *Status,
	publisher events.Publisher,
) SyncQueue {
	return &syncQueue{
		kv:     kv,
		engine: engine,
		writer: &remoteWriter{remote: remote, mapper: mapper},
		status: status,
		events: publisher,
		retry:  DefaultRetryDelay,
	}
}

func (q *syncQueue) SwitchUser(ctx context.Context, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopRetryLocked()
	q.userID = userID
	q.entries = nil
	if userID == "" {
		return nil
	}

	entries, err := q.load(ctx, userID)
	if err != nil {
		return err
	}
	q.entries = entries
	q.publishSizeLocked(ctx)
	return nil
}

func (q *syncQueue) Enqueue(ctx context.Context, op models.SyncOperation, collection models.Collection, payload models.Document) (models.SyncQueueEntry, *Task[DrainResult], error) {
	log := logger.FromContext(ctx)

	if !collection.Valid() {
		return models.SyncQueueEntry{}, nil, fmt.Errorf("enqueue: unknown collection %q", collection)
	}
	switch op {
	case models.OperationCreate, models.OperationUpdate, models.OperationDelete:
	default:
		return models.SyncQueueEntry{}, nil, fmt.Errorf("enqueue %q: %w", op, errUnknownOperation)
	}

	payload = payload.Clone()
	if q.engine.IsReady() {
		payload = q.engine.EncryptFields(ctx, collection, payload)
	}
	entry := models.SyncQueueEntry{
		ID:         utils.NewULID(),
		Operation:  op,
		Collection: collection,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return models.SyncQueueEntry{}, nil, ErrQueueClosed
	}
	if q.userID == "" {
		q.mu.Unlock()
		return models.SyncQueueEntry{}, nil, ErrNotAuthenticated
	}
	q.entries = append(q.entries, entry)
	if err := q.persistLocked(ctx, q.userID, q.entries); err != nil {
		q.entries = q.entries[:len(q.entries)-1]
		q.mu.Unlock()
		return models.SyncQueueEntry{}, nil, err
	}
	q.publishSizeLocked(ctx)
	q.mu.Unlock()

	log.Debug().
		Str("func", "syncQueue.Enqueue").
		Str("entry_id", entry.ID).
		Str("operation", string(op)).
		Str("collection", collection.String()).
		Str("local_id", entry.LocalID()).
		Msg("write queued")

	if !q.status.IsOnline() {
		return entry, nil, nil
	}
	return entry, q.Drain(context.WithoutCancel(ctx)), nil
}

func (q *syncQueue) Drain(ctx context.Context) *Task[DrainResult] {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inflight != nil {
		if q.inflightUser == q.userID {
			return q.inflight
		}
		// the previous user's drain is still finishing; drain this user's
		// queue once it is done
		prev := q.inflight
		drainCtx := context.WithoutCancel(ctx)
		return runTask(func() (DrainResult, error) {
			<-prev.Done()
			return q.Drain(drainCtx).Wait(drainCtx)
		})
	}

	userID := q.userID
	pending := len(q.entries)
	if q.closed || userID == "" || pending == 0 || !q.status.IsOnline() {
		return CompletedTask(DrainResult{Remaining: pending}, nil)
	}

	q.stopRetryLocked()
	snapshot := slices.Clone(q.entries)
	task := newTask[DrainResult]()
	q.inflight = task
	q.inflightUser = userID
	q.wg.Add(1)

	drainCtx := context.WithoutCancel(ctx)
	go func() {
		defer q.wg.Done()
		task.resolve(q.drain(drainCtx, userID, snapshot), nil)
	}()
	return task
}

// drain applies snapshot in order. Once an entry fails, later entries for the
// same record are held back so they can never overtake it.
func (q *syncQueue) drain(ctx context.Context, userID string, snapshot []models.SyncQueueEntry) DrainResult {
	log := logger.FromContext(ctx)

	var res DrainResult
	applied := make(map[string]struct{}, len(snapshot))
	blocked := make(map[string]struct{})

	for _, entry := range snapshot {
		if !q.status.IsOnline() {
			break
		}
		record := entry.Collection.String() + "/" + entry.LocalID()
		if _, held := blocked[record]; held {
			res.Failed++
			continue
		}

		converted, err := q.apply(ctx, userID, entry)
		if err != nil {
			log.Warn().Err(err).
				Str("func", "syncQueue.drain").
				Str("entry_id", entry.ID).
				Str("operation", string(entry.Operation)).
				Str("collection", entry.Collection.String()).
				Msg("queued write not applied")
			blocked[record] = struct{}{}
			res.Failed++
			continue
		}
		applied[entry.ID] = struct{}{}
		res.Applied++
		if converted {
			res.Converted++
		}
	}

	wasApplied := func(e models.SyncQueueEntry) bool {
		_, ok := applied[e.ID]
		return ok
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.inflight = nil
	q.inflightUser = ""
	if q.userID != userID {
		// the user switched mid-drain: write back only what this drain owned
		rest := slices.DeleteFunc(slices.Clone(snapshot), wasApplied)
		if err := q.persistLocked(ctx, userID, rest); err != nil {
			log.Err(err).Str("func", "syncQueue.drain").Msg("failed to persist queue of previous user")
		}
		res.Remaining = len(rest)
		return res
	}

	q.entries = slices.DeleteFunc(q.entries, wasApplied)
	if err := q.persistLocked(ctx, userID, q.entries); err != nil {
		log.Err(err).Str("func", "syncQueue.drain").Msg("failed to persist queue")
	}
	res.Remaining = len(q.entries)
	if res.Applied > 0 {
		q.publishSizeLocked(ctx)
	}
	if res.Remaining > 0 && !q.closed && q.status.IsOnline() {
		q.timer = time.AfterFunc(q.retry, func() { q.Drain(ctx) })
	}

	log.Debug().
		Str("func", "syncQueue.drain").
		Int("applied", res.Applied).
		Int("failed", res.Failed).
		Int("remaining", res.Remaining).
		Msg("drain pass finished")
	return res
}

// apply performs one queued write. An update of a record that has no remote
// document is applied as a create and reported as converted; a delete of a
// record that never reached the Remote Store succeeds.
func (q *syncQueue) apply(ctx context.Context, userID string, entry models.SyncQueueEntry) (converted bool, err error) {
	localID := entry.LocalID()
	if localID == "" {
		return false, fmt.Errorf("entry %s carries no local id", entry.ID)
	}

	payload := entry.Payload.Clone()
	if payload == nil {
		payload = models.Document{}
	}
	if payload[models.FieldUserID] == nil {
		payload[models.FieldUserID] = userID
	}
	if q.engine.IsReady() && q.engine.ObjectNeedsEncryption(entry.Collection, payload) {
		payload = q.engine.EncryptFields(ctx, entry.Collection, payload)
	}

	switch entry.Operation {
	case models.OperationCreate:
		_, _, err = q.writer.put(ctx, userID, entry.Collection, localID, payload)
		return false, err
	case models.OperationUpdate:
		_, created, err := q.writer.put(ctx, userID, entry.Collection, localID, payload)
		return created, err
	case models.OperationDelete:
		return false, q.writer.remove(ctx, userID, entry.Collection, localID)
	}
	return false, fmt.Errorf("entry %s: %w", entry.ID, errUnknownOperation)
}

func (q *syncQueue) DrainAggressive(ctx context.Context) (DrainResult, error) {
	log := logger.FromContext(ctx)

	if !q.status.IsOnline() {
		return DrainResult{Remaining: q.Size()}, ErrOffline
	}

	// only entries present now are attempted below and so may be quarantined
	q.mu.Lock()
	userID := q.userID
	attempted := make(map[string]struct{}, len(q.entries))
	for _, e := range q.entries {
		attempted[e.ID] = struct{}{}
	}
	q.mu.Unlock()

	res, err := q.Drain(ctx).Wait(ctx)
	if err != nil {
		return res, err
	}
	if res.Remaining > 0 {
		// a second pass picks up entries enqueued behind a shared drain
		second, err := q.Drain(ctx).Wait(ctx)
		if err != nil {
			return res, err
		}
		res.Applied += second.Applied
		res.Converted += second.Converted
		res.Failed = second.Failed
		res.Remaining = second.Remaining
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopRetryLocked()
	res.Remaining = len(q.entries)
	if userID == "" || q.userID != userID || !q.status.IsOnline() {
		return res, nil
	}

	var stuck, rest []models.SyncQueueEntry
	for _, e := range q.entries {
		if _, ok := attempted[e.ID]; ok {
			stuck = append(stuck, e)
		} else {
			rest = append(rest, e)
		}
	}
	if len(stuck) == 0 {
		return res, nil
	}

	raw, err := json.Marshal(stuck)
	if err != nil {
		return res, fmt.Errorf("encode quarantined entries: %w", err)
	}
	key := models.QuarantineKey(q.userID, time.Now())
	if err = q.kv.Set(ctx, key, string(raw)); err != nil {
		return res, fmt.Errorf("write quarantine %s: %w", key, err)
	}
	q.entries = rest
	if err = q.persistLocked(ctx, q.userID, rest); err != nil {
		return res, err
	}
	q.publishSizeLocked(ctx)
	if len(rest) > 0 && !q.closed {
		drainCtx := context.WithoutCancel(ctx)
		q.timer = time.AfterFunc(q.retry, func() { q.Drain(drainCtx) })
	}

	log.Warn().
		Str("func", "syncQueue.DrainAggressive").
		Str("quarantine_key", key).
		Int("entries", len(stuck)).
		Msg("unsendable queue entries quarantined")

	res.Quarantined = len(stuck)
	res.Remaining = len(rest)
	return res, nil
}

func (q *syncQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *syncQueue) Entries() []models.SyncQueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.entries)
}

func (q *syncQueue) State() DrainState {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inflight != nil {
		return Draining
	}
	return DrainIdle
}

func (q *syncQueue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopRetryLocked()
	if q.userID == "" {
		return nil
	}
	q.entries = nil
	if err := q.persistLocked(ctx, q.userID, nil); err != nil {
		return err
	}
	q.publishSizeLocked(ctx)
	return nil
}

func (q *syncQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.stopRetryLocked()
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *syncQueue) stopRetryLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

// load reads the persisted queue of userID. A queue that cannot be decoded is
// moved to a quarantine key and replaced by an empty one.
func (q *syncQueue) load(ctx context.Context, userID string) ([]models.SyncQueueEntry, error) {
	raw, found, err := q.kv.Get(ctx, models.SyncQueueKey(userID))
	if err != nil {
		return nil, fmt.Errorf("read sync queue: %w", err)
	}
	if !found || raw == "" {
		return nil, nil
	}

	var entries []models.SyncQueueEntry
	if err = json.Unmarshal([]byte(raw), &entries); err != nil {
		key := models.QuarantineKey(userID, time.Now())
		logger.FromContext(ctx).Err(err).
			Str("func", "syncQueue.load").
			Str("quarantine_key", key).
			Msg("undecodable sync queue quarantined")
		if err = q.kv.Set(ctx, key, raw); err != nil {
			return nil, fmt.Errorf("quarantine undecodable sync queue: %w", err)
		}
		return nil, q.kv.Delete(ctx, models.SyncQueueKey(userID))
	}
	return entries, nil
}

func (q *syncQueue) persistLocked(ctx context.Context, userID string, entries []models.SyncQueueEntry) error {
	key := models.SyncQueueKey(userID)
	if len(entries) == 0 {
		if err := q.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear sync queue: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode sync queue: %w", err)
	}
	if err = q.kv.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("write sync queue: %w", err)
	}
	return nil
}

func (q *syncQueue) publishSizeLocked(ctx context.Context) {
	if q.events == nil {
		return
	}
	q.events.Publish(ctx, events.SyncQueueSize, events.QueueSizeChanged{UserID: q.userID, Size: len(q.entries)})
}
