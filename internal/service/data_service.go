// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/crypto"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/store"
	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/MKhiriev/go-fish-log/internal/validators"
	"github.com/MKhiriev/go-fish-log/models"
)

// DataServiceConfig tunes the merge workflow.
type DataServiceConfig struct {
	// MergeChunkSize is how many records are upserted between yields.
	MergeChunkSize int
	// OrphanCeiling is the most remote orphans a merge will delete in one go.
	OrphanCeiling int
}

const (
	defaultMergeChunkSize = 25
	defaultOrphanCeiling  = 50
)

type dataService struct {
	trips       store.TripRepository
	weatherLogs store.WeatherLogRepository
	fishCaught  store.FishCaughtRepository
	kv          store.KeyValueRepository

	remote adapter.RemoteStore
	blobs  adapter.BlobStore
	writer *remoteWriter

	engine    crypto.Engine
	mapper    IDMapper
	queue     SyncQueue
	migration MigrationJob
	status    *Status
	validator validators.Validator
	ids       *utils.UUIDGenerator
	clock     *idClock

	chunkSize     int
	orphanCeiling int
}

// NewDataService assembles the sync core from its collaborators. migration
// may be nil when no encryption migration runs in the process.
func NewDataService(
	storages *store.ClientStorages,
	remote adapter.RemoteStore,
	blobs adapter.BlobStore,
	engine crypto.Engine,
	mapper IDMapper,
	queue SyncQueue,
	migration MigrationJob,
	status *Status,
	validator validators.Validator,
	cfg DataServiceConfig,
) DataService {
	if cfg.MergeChunkSize <= 0 {
		cfg.MergeChunkSize = defaultMergeChunkSize
	}
	if cfg.OrphanCeiling <= 0 {
		cfg.OrphanCeiling = defaultOrphanCeiling
	}

	return &dataService{
		trips:         storages.Trips,
		weatherLogs:   storages.WeatherLogs,
		fishCaught:    storages.FishCaught,
		kv:            storages.KeyValues,
		remote:        remote,
		blobs:         blobs,
		writer:        &remoteWriter{remote: remote, mapper: mapper},
		engine:        engine,
		mapper:        mapper,
		queue:         queue,
		migration:     migration,
		status:        status,
		validator:     validator,
		ids:           utils.NewUUIDGenerator(),
		clock:         &idClock{},
		chunkSize:     cfg.MergeChunkSize,
		orphanCeiling: cfg.OrphanCeiling,
	}
}

// ── session and connectivity ─────────────────────────────────────────────────

func (s *dataService) SignIn(ctx context.Context, userID, email string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	ctx = logger.WithUser(ctx, userID)
	log := logger.FromContext(ctx)

	if err := s.stopMigration(ctx); err != nil {
		return err
	}

	// without a key every write passes through in plaintext, which the
	// migration job repairs once a key exists
	if err := s.engine.SetDeterministicKey(ctx, userID, email); err != nil {
		log.Err(err).Str("func", "dataService.SignIn").Msg("encryption key derivation failed, continuing unencrypted")
	}

	if err := s.queue.SwitchUser(ctx, userID); err != nil {
		s.engine.Clear()
		return fmt.Errorf("activate sync queue: %w", err)
	}
	s.status.setSession(Session{State: Authenticated, UserID: userID, Email: email})

	log.Info().
		Str("func", "dataService.SignIn").
		Bool("encryption_ready", s.engine.IsReady()).
		Int("queued", s.queue.Size()).
		Msg("signed in")

	s.queue.Drain(ctx)
	return nil
}

func (s *dataService) SignOut(ctx context.Context) error {
	if err := s.stopMigration(ctx); err != nil {
		return err
	}
	if err := s.queue.SwitchUser(ctx, ""); err != nil {
		return err
	}
	s.engine.Clear()
	s.status.setSession(Session{State: Guest})

	logger.FromContext(ctx).Info().Str("func", "dataService.SignOut").Msg("signed out")
	return nil
}

// stopMigration waits out a running migration pass so it never encrypts with
// a key that is about to be cleared or replaced.
func (s *dataService) stopMigration(ctx context.Context) error {
	if s.migration == nil {
		return nil
	}
	if err := s.migration.Stop(ctx); err != nil {
		return fmt.Errorf("stop encryption migration: %w", err)
	}
	return nil
}

func (s *dataService) Session() Session {
	return s.status.Session()
}

func (s *dataService) SetConnectivity(ctx context.Context, c Connectivity) *Task[DrainResult] {
	changed := s.status.SetConnectivity(c)
	if changed {
		logger.FromContext(ctx).Info().
			Str("func", "dataService.SetConnectivity").
			Stringer("connectivity", c).
			Msg("connectivity changed")
	}
	if c == Online && changed {
		return s.queue.Drain(ctx)
	}
	return CompletedTask(DrainResult{Remaining: s.queue.Size()}, nil)
}

func (s *dataService) Connectivity() Connectivity {
	return s.status.Connectivity()
}

func (s *dataService) ObjectNeedsEncryption(collection models.Collection, doc models.Document) bool {
	return s.engine.ObjectNeedsEncryption(collection, doc)
}

func (s *dataService) DrainSyncQueue(ctx context.Context) *Task[DrainResult] {
	return s.queue.Drain(ctx)
}

func (s *dataService) DrainSyncQueueAggressive(ctx context.Context) (DrainResult, error) {
	if !s.status.Session().IsAuthenticated() {
		return DrainResult{}, ErrNotAuthenticated
	}
	return s.queue.DrainAggressive(ctx)
}

func (s *dataService) SyncStatus(ctx context.Context) (SyncStatus, error) {
	session := s.status.Session()
	c := s.status.Connectivity()
	st := SyncStatus{
		Session:      session,
		Connectivity: c,
		Online:       c == Online,
		QueueSize:    s.queue.Size(),
		Draining:     s.queue.State() == Draining,
	}
	if !session.IsAuthenticated() {
		return st, nil
	}

	raw, found, err := s.kv.Get(ctx, models.LastSyncKey(session.UserID))
	if err != nil {
		return st, fmt.Errorf("read last sync: %w", err)
	}
	if found {
		if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			st.LastSync = &at
		}
	}
	return st, nil
}

// ── write routing ────────────────────────────────────────────────────────────

// mirror routes a create or update. Guests write locally. Signed-in users
// write remotely when online; on failure or offline the record is kept
// locally and the write is queued. payload is plaintext.
func (s *dataService) mirror(
	ctx context.Context,
	op models.SyncOperation,
	collection models.Collection,
	localID string,
	payload models.Document,
	saveLocal func() error,
) (string, WriteOutcome, error) {
	log := logger.FromContext(ctx)

	if !s.status.Session().IsAuthenticated() {
		if err := saveLocal(); err != nil {
			return "", LocalOnly, err
		}
		return "", LocalOnly, nil
	}

	if userID, ok := s.status.remoteUser(); ok {
		encrypted := s.engine.EncryptFields(ctx, collection, payload)
		remoteID, _, err := s.writer.put(ctx, userID, collection, localID, encrypted)
		if err == nil {
			return remoteID, Committed, nil
		}
		log.Warn().Err(err).
			Str("func", "dataService.mirror").
			Str("collection", collection.String()).
			Str("local_id", localID).
			Msg("remote write failed, keeping record locally")
	}

	return "", Queued, s.keepAndQueue(ctx, op, collection, payload, saveLocal)
}

// keepAndQueue is the local fallback of a signed-in write.
func (s *dataService) keepAndQueue(ctx context.Context, op models.SyncOperation, collection models.Collection, payload models.Document, saveLocal func() error) error {
	if saveLocal != nil {
		if err := saveLocal(); err != nil {
			return fmt.Errorf("local fallback write: %w", err)
		}
	}
	if _, _, err := s.queue.Enqueue(ctx, op, collection, payload); err != nil {
		return fmt.Errorf("queue %s: %w", op, err)
	}
	return nil
}

// remove routes a delete. The local copy is always removed first.
func (s *dataService) remove(ctx context.Context, collection models.Collection, localID string, deleteLocal func() error) (WriteOutcome, error) {
	log := logger.FromContext(ctx)

	if err := deleteLocal(); err != nil {
		return LocalOnly, err
	}

	session := s.status.Session()
	if !session.IsAuthenticated() {
		return LocalOnly, nil
	}

	if userID, ok := s.status.remoteUser(); ok {
		err := s.writer.remove(ctx, userID, collection, localID)
		if err == nil {
			return Committed, nil
		}
		log.Warn().Err(err).
			Str("func", "dataService.remove").
			Str("collection", collection.String()).
			Str("local_id", localID).
			Msg("remote delete not confirmed, queueing")
	}

	payload := models.Document{
		models.FieldID:     idValue(collection, localID),
		models.FieldUserID: session.UserID,
	}
	return Queued, s.keepAndQueue(ctx, models.OperationDelete, collection, payload, nil)
}

// pendingOps returns the last queued operation per local id of collection.
func (s *dataService) pendingOps(collection models.Collection) map[string]models.SyncOperation {
	out := make(map[string]models.SyncOperation)
	for _, e := range s.queue.Entries() {
		if e.Collection == collection {
			out[e.LocalID()] = e.Operation
		}
	}
	return out
}

// overlay lays queued local writes over a remote read: records with a queued
// delete disappear and records with a queued create or update are replaced
// by (or extended with) their local copy. keep filters the local copies.
func overlay[T any](
	items []T,
	pending map[string]models.SyncOperation,
	idOf func(T) string,
	local func(id string) (T, error),
	keep func(T) bool,
) []T {
	if len(pending) == 0 {
		return items
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		id := idOf(item)
		seen[id] = struct{}{}
		switch pending[id] {
		case models.OperationDelete:
			continue
		case models.OperationCreate, models.OperationUpdate:
			if fresh, err := local(id); err == nil {
				item = fresh
			}
		}
		out = append(out, item)
	}

	for id, op := range pending {
		if _, ok := seen[id]; ok || op == models.OperationDelete {
			continue
		}
		if item, err := local(id); err == nil && keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// queryRemote runs q and decodes every document; undecodable documents are
// logged and skipped.
func queryRemote[T any](ctx context.Context, s *dataService, q adapter.Query, setRemoteID func(*T, string)) ([]T, error) {
	docs, err := s.remote.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err = decodeRemote(ctx, s.engine, doc, &item); err != nil {
			logger.FromContext(ctx).Err(err).Str("func", "queryRemote").Msg("skipping undecodable document")
			continue
		}
		setRemoteID(&item, doc.ID)
		out = append(out, item)
	}
	return out, nil
}

// localErr maps Local Store errors onto the service sentinels.
func localErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// idClock hands out millisecond-timestamp trip ids that never repeat within
// the process.
type idClock struct {
	mu   sync.Mutex
	last int64
}

func (c *idClock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := time.Now().UnixMilli()
	if id <= c.last {
		id = c.last + 1
	}
	c.last = id
	return id
}
