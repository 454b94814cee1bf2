// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/crypto"
	"github.com/MKhiriev/go-fish-log/internal/events"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/store"
	"github.com/MKhiriev/go-fish-log/models"
)

// MigrationBatchBudget is the most documents read, and so the most writes
// staged, per batch.
const MigrationBatchBudget = 350

type migrationJob struct {
	kv       store.KeyValueRepository
	remote   adapter.RemoteStore
	engine   crypto.Engine
	status   *Status
	events   events.Publisher
	helpLink string
	budget   int

	mu       sync.Mutex
	state    MigrationRunState
	inflight *Task[models.MigrationSummary]
	cancel   context.CancelFunc
}

// NewMigrationJob returns an idle job. helpLink is attached to missing-index
// events when the store error carries no link of its own.
func NewMigrationJob(
	kv store.KeyValueRepository,
	remote adapter.RemoteStore,
	engine crypto.Engine,
	status *Status,
	publisher events.Publisher,
	helpLink string,
) MigrationJob {
	return &migrationJob{
		kv:       kv,
		remote:   remote,
		engine:   engine,
		status:   status,
		events:   publisher,
		helpLink: helpLink,
		budget:   MigrationBatchBudget,
	}
}

func (j *migrationJob) Run(ctx context.Context) *Task[models.MigrationSummary] {
	userID, ok := j.status.remoteUser()
	switch {
	case !j.status.Session().IsAuthenticated():
		return CompletedTask(models.MigrationSummary{}, ErrNotAuthenticated)
	case !ok:
		return CompletedTask(models.MigrationSummary{UserID: j.status.Session().UserID}, ErrOffline)
	case !j.engine.IsReady():
		return CompletedTask(models.MigrationSummary{UserID: userID}, ErrEncryptionNotReady)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state == MigrationRunning {
		return j.inflight
	}
	j.state = MigrationRunning
	runCtx, cancel := context.WithCancel(logger.WithUser(context.WithoutCancel(ctx), userID))
	j.cancel = cancel
	j.inflight = runTask(func() (models.MigrationSummary, error) {
		defer j.finish()
		return j.run(runCtx, userID)
	})
	return j.inflight
}

func (j *migrationJob) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		j.cancel()
	}
	j.state = MigrationIdle
	j.inflight = nil
	j.cancel = nil
}

// Stop cancels the running pass, if any, and waits until it has returned.
// The pass keeps the progress of batches it already finished.
func (j *migrationJob) Stop(ctx context.Context) error {
	j.mu.Lock()
	task, cancel := j.inflight, j.cancel
	j.mu.Unlock()

	if task == nil {
		return nil
	}
	cancel()

	select {
	case <-task.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for migration to stop: %w", ctx.Err())
	}
}

// owns reports whether the pass for userID may still write: the same user is
// signed in and online, the key is ready and the pass was not stopped.
func (j *migrationJob) owns(ctx context.Context, userID string) bool {
	if ctx.Err() != nil || !j.engine.IsReady() {
		return false
	}
	current, ok := j.status.remoteUser()
	return ok && current == userID
}

func (j *migrationJob) run(ctx context.Context, userID string) (models.MigrationSummary, error) {
	log := logger.FromContext(ctx)
	summary := models.MigrationSummary{UserID: userID, States: make(map[models.Collection]models.CollectionMigrationState)}

	complete, err := j.isComplete(ctx, userID)
	if err != nil {
		return summary, err
	}
	if complete {
		summary.Completed = true
		summary.States, err = j.loadStates(ctx, userID)
		return summary, err
	}

	// a fresh run clears an abort request left over from the previous one
	if err = j.kv.Delete(ctx, models.MigrationAbortKey); err != nil {
		return summary, fmt.Errorf("clear migration abort flag: %w", err)
	}

collections:
	for _, collection := range models.MigratedCollections {
		if j.abortRequested(ctx) {
			summary.Aborted = true
			break
		}

		st, err := j.loadState(ctx, userID, collection)
		if err != nil {
			return summary, err
		}

		for !st.Done {
			if j.abortRequested(ctx) {
				summary.Aborted = true
				summary.States[collection] = st
				break collections
			}

			processed, updated, err := j.batch(ctx, userID, collection, &st)
			summary.Processed += processed
			summary.Updated += updated
			if err != nil {
				summary.States[collection] = st
				if errors.Is(err, ErrMigrationInterrupted) {
					log.Info().
						Str("func", "migrationJob.run").
						Str("collection", collection.String()).
						Msg("migration pass interrupted by session change")
					return summary, err
				}
				if !adapter.IsMissingIndex(err) {
					log.Err(err).
						Str("func", "migrationJob.run").
						Str("collection", collection.String()).
						Msg("migration pass stopped")
					return summary, err
				}

				// fail fast: retrying cannot help until the index exists
				link := adapter.IndexLink(err, j.helpLink)
				st.Done = true
				log.Warn().
					Str("func", "migrationJob.run").
					Str("collection", collection.String()).
					Str("link", link).
					Msg("remote index missing, collection marked done")
				j.publish(ctx, events.RemoteIndexMissing, events.IndexMissing{Collection: collection, Link: link})
			}

			if err = j.saveState(ctx, userID, collection, st); err != nil {
				return summary, err
			}
		}
		summary.States[collection] = st
	}

	if summary.Aborted {
		log.Info().Str("func", "migrationJob.run").Msg("migration aborted")
		return summary, nil
	}

	states, err := j.loadStates(ctx, userID)
	if err != nil {
		return summary, err
	}
	summary.States = states
	for _, st := range states {
		if !st.Done {
			return summary, nil
		}
	}

	if err = j.kv.Set(ctx, models.MigrationCompleteKey(userID), "true"); err != nil {
		return summary, fmt.Errorf("mark migration complete: %w", err)
	}
	summary.Completed = true

	var total events.MigrationCompleted
	total.UserID = userID
	for _, st := range states {
		total.Processed += st.Processed
		total.Updated += st.Updated
	}
	j.publish(ctx, events.MigrationComplete, total)

	log.Info().
		Str("func", "migrationJob.run").
		Int("processed", total.Processed).
		Int("updated", total.Updated).
		Msg("encryption migration complete")
	return summary, nil
}

// batch reads one page after the cursor and commits encrypted copies of the
// documents that still hold plaintext. A failed commit earns no updated
// credit, but the cursor still moves past what was read. When the session
// no longer belongs to userID, batch returns ErrMigrationInterrupted and
// leaves st untouched.
func (j *migrationJob) batch(ctx context.Context, userID string, collection models.Collection, st *models.CollectionMigrationState) (processed, updated int, err error) {
	if !j.owns(ctx, userID) {
		return 0, 0, ErrMigrationInterrupted
	}

	q := adapter.Query{
		Collection:       collection,
		UserID:           userID,
		OrderByCreatedAt: true,
		CreatedAfter:     st.Cursor,
		Limit:            j.budget,
	}
	if st.Cursor != nil {
		q.CreatedAfterID = st.CursorID
	}
	docs, err := j.remote.Query(ctx, q)
	if err != nil {
		if !j.owns(ctx, userID) {
			return 0, 0, ErrMigrationInterrupted
		}
		return 0, 0, err
	}
	if len(docs) == 0 {
		st.Done = true
		return 0, 0, nil
	}

	var ops []adapter.BatchOp
	for _, doc := range docs {
		if !j.engine.ObjectNeedsEncryption(collection, doc.Data) {
			continue
		}
		changed := changedFields(doc.Data, j.engine.EncryptFields(ctx, collection, doc.Data))
		if len(changed) == 0 {
			continue
		}
		ops = append(ops, adapter.BatchOp{
			Kind:       adapter.BatchUpdate,
			Collection: collection,
			ID:         doc.ID,
			Data:       changed,
		})
	}

	if len(ops) > 0 {
		if err = j.remote.CommitBatch(ctx, ops); err != nil {
			if !j.owns(ctx, userID) {
				return 0, 0, ErrMigrationInterrupted
			}
			logger.FromContext(ctx).Warn().Err(err).
				Str("func", "migrationJob.batch").
				Str("collection", collection.String()).
				Int("staged", len(ops)).
				Msg("migration batch not committed")
		} else {
			updated = len(ops)
		}
	}

	processed = len(docs)
	st.Processed += processed
	st.Updated += updated

	last := docs[len(docs)-1]
	if last.CreatedAt == nil {
		st.Done = true
	} else {
		at := *last.CreatedAt
		st.Cursor = &at
		st.CursorID = last.ID
	}
	return processed, updated, nil
}

// changedFields returns the keys of after whose values differ from before.
func changedFields(before, after models.Document) models.Document {
	out := make(models.Document)
	for k, v := range after {
		if old, ok := before[k]; !ok || !reflect.DeepEqual(old, v) {
			out[k] = v
		}
	}
	return out
}

func (j *migrationJob) Abort(ctx context.Context) error {
	if err := j.kv.Set(ctx, models.MigrationAbortKey, "true"); err != nil {
		return fmt.Errorf("set migration abort flag: %w", err)
	}
	return nil
}

func (j *migrationJob) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	for _, collection := range models.MigratedCollections {
		if err := j.kv.Delete(ctx, models.MigrationStateKey(userID, collection)); err != nil {
			return fmt.Errorf("reset migration state: %w", err)
		}
	}
	return j.kv.Delete(ctx, models.MigrationCompleteKey(userID))
}

func (j *migrationJob) State(ctx context.Context, userID string) (MigrationStatus, error) {
	status := MigrationStatus{UserID: userID, States: make(map[models.Collection]CollectionProgress)}

	j.mu.Lock()
	status.Running = j.state == MigrationRunning
	j.mu.Unlock()

	complete, err := j.isComplete(ctx, userID)
	if err != nil {
		return status, err
	}
	status.Completed = complete

	for _, collection := range models.MigratedCollections {
		st, found, err := j.readState(ctx, userID, collection)
		if err != nil {
			return status, err
		}
		status.States[collection] = CollectionProgress{CollectionMigrationState: st, Phase: phaseOf(st, found)}
	}
	return status, nil
}

func phaseOf(st models.CollectionMigrationState, found bool) CollectionPhase {
	switch {
	case st.Done:
		return PhaseDone
	case found:
		return PhaseScanning
	}
	return PhaseIdle
}

func (j *migrationJob) abortRequested(ctx context.Context) bool {
	v, found, err := j.kv.Get(ctx, models.MigrationAbortKey)
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "migrationJob.abortRequested").Msg("abort flag unreadable, stopping")
		return true
	}
	return found && v != ""
}

func (j *migrationJob) isComplete(ctx context.Context, userID string) (bool, error) {
	v, found, err := j.kv.Get(ctx, models.MigrationCompleteKey(userID))
	if err != nil {
		return false, fmt.Errorf("read migration complete flag: %w", err)
	}
	return found && v == "true", nil
}

func (j *migrationJob) readState(ctx context.Context, userID string, collection models.Collection) (models.CollectionMigrationState, bool, error) {
	var st models.CollectionMigrationState
	raw, found, err := j.kv.Get(ctx, models.MigrationStateKey(userID, collection))
	if err != nil {
		return st, false, fmt.Errorf("read migration state: %w", err)
	}
	if !found {
		return st, false, nil
	}
	if err = json.Unmarshal([]byte(raw), &st); err != nil {
		return models.CollectionMigrationState{}, false, fmt.Errorf("decode migration state of %s: %w", collection, err)
	}
	return st, true, nil
}

func (j *migrationJob) loadState(ctx context.Context, userID string, collection models.Collection) (models.CollectionMigrationState, error) {
	st, _, err := j.readState(ctx, userID, collection)
	return st, err
}

func (j *migrationJob) loadStates(ctx context.Context, userID string) (map[models.Collection]models.CollectionMigrationState, error) {
	out := make(map[models.Collection]models.CollectionMigrationState, len(models.MigratedCollections))
	for _, collection := range models.MigratedCollections {
		st, err := j.loadState(ctx, userID, collection)
		if err != nil {
			return nil, err
		}
		out[collection] = st
	}
	return out, nil
}

func (j *migrationJob) saveState(ctx context.Context, userID string, collection models.Collection, st models.CollectionMigrationState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode migration state: %w", err)
	}
	if err = j.kv.Set(ctx, models.MigrationStateKey(userID, collection), string(raw)); err != nil {
		return fmt.Errorf("write migration state: %w", err)
	}
	return nil
}

func (j *migrationJob) publish(ctx context.Context, name events.Name, payload any) {
	if j.events != nil {
		j.events.Publish(ctx, name, payload)
	}
}
