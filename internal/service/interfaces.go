// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"time"

	"github.com/MKhiriev/go-fish-log/models"
)

// IDMapper is the persistent table bridging local ids, assigned before any
// remote document exists, to Remote Store document ids. Every entry is
// namespaced by user id.
type IDMapper interface {
	// Get returns the remote id mapped to (userID, collection, localID).
	Get(ctx context.Context, userID string, collection models.Collection, localID string) (string, bool, error)
	Set(ctx context.Context, userID string, collection models.Collection, localID, remoteID string) error
	Delete(ctx context.Context, userID string, collection models.Collection, localID string) error
	// DeleteAll removes every mapping of userID and reports how many were removed.
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

// DrainResult reports one pass over the sync queue.
type DrainResult struct {
	Applied   int `json:"applied"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
	// Converted counts updates applied as creates because no remote
	// document existed.
	Converted int `json:"converted"`
	// Quarantined counts entries moved aside by an aggressive drain.
	Quarantined int `json:"quarantined"`
}

// SyncQueue is the per-user, persisted list of remote writes made while the
// Remote Store could not be reached.
type SyncQueue interface {
	// SwitchUser makes the queue of userID the active one. An empty userID
	// deactivates the queue. Queues are never merged.
	SwitchUser(ctx context.Context, userID string) error

	// Enqueue appends a write for the active user and persists the queue.
	// The payload is encrypted first when a key is ready. When online a
	// drain is started and its future returned; otherwise the task is nil.
	Enqueue(ctx context.Context, op models.SyncOperation, collection models.Collection, payload models.Document) (models.SyncQueueEntry, *Task[DrainResult], error)

	// Drain applies queued entries in order. Entries that fail stay queued
	// and a retry is scheduled. A call made while a drain is running returns
	// the running drain's task.
	Drain(ctx context.Context) *Task[DrainResult]

	// DrainAggressive drains and then moves every entry still queued into a
	// timestamped quarantine key so later syncs are no longer blocked.
	DrainAggressive(ctx context.Context) (DrainResult, error)

	Size() int
	Entries() []models.SyncQueueEntry
	State() DrainState

	// Clear drops every entry of the active user.
	Clear(ctx context.Context) error

	// Close stops scheduled retries and waits for a running drain.
	Close()
}

// MergeCounts tallies upsert outcomes for one collection.
type MergeCounts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Queued    int `json:"queued"`
	LocalOnly int `json:"localOnly"`
	Failed    int `json:"failed"`
}

// MergeResult reports a guest-to-user merge.
type MergeResult struct {
	Trips       MergeCounts `json:"trips"`
	WeatherLogs MergeCounts `json:"weatherLogs"`
	FishCaught  MergeCounts `json:"fishCaught"`

	LocalOrphansRemoved  int64 `json:"localOrphansRemoved"`
	RemoteOrphansRemoved int   `json:"remoteOrphansRemoved"`
	// RemoteOrphansSkipped is set when more orphan candidates were found
	// than the cleanup ceiling allows; nothing was deleted remotely then.
	RemoteOrphansSkipped bool `json:"remoteOrphansSkipped"`
}

// SyncStatus is a snapshot for the UI.
type SyncStatus struct {
	Session      Session      `json:"session"`
	Connectivity Connectivity `json:"-"`
	Online       bool         `json:"online"`
	QueueSize    int          `json:"queueSize"`
	Draining     bool         `json:"draining"`
	LastSync     *time.Time   `json:"lastSync,omitempty"`
}

// DataService is the sync core the UI talks to. It routes every read and
// write by session (guest or signed in) and connectivity.
//
// Guest writes go to the Local Store only. Signed-in writes are encrypted
// and attempted against the Remote Store first; when that fails or the
// process is offline the record is written locally and the write is queued.
type DataService interface {
	// SignIn derives the user's encryption key and activates their sync queue.
	SignIn(ctx context.Context, userID, email string) error
	// SignOut forgets the key and returns to guest mode.
	SignOut(ctx context.Context) error
	Session() Session

	// SetConnectivity records the connectivity state. Going online starts a
	// drain of the sync queue and returns its future.
	SetConnectivity(ctx context.Context, c Connectivity) *Task[DrainResult]
	Connectivity() Connectivity

	CreateTrip(ctx context.Context, trip models.Trip) (models.Trip, WriteOutcome, error)
	UpdateTrip(ctx context.Context, trip models.Trip) (models.Trip, WriteOutcome, error)
	// DeleteTrip removes the trip and every weather log and catch of it.
	DeleteTrip(ctx context.Context, id int64) (WriteOutcome, error)
	GetTrip(ctx context.Context, id int64) (models.Trip, error)
	GetAllTrips(ctx context.Context) ([]models.Trip, error)
	GetTripsByDate(ctx context.Context, date string) ([]models.Trip, error)

	CreateWeatherLog(ctx context.Context, log models.WeatherLog) (models.WeatherLog, WriteOutcome, error)
	UpdateWeatherLog(ctx context.Context, log models.WeatherLog) (models.WeatherLog, WriteOutcome, error)
	DeleteWeatherLog(ctx context.Context, id string) (WriteOutcome, error)
	GetWeatherLogsForTrip(ctx context.Context, tripID int64) ([]models.WeatherLog, error)
	GetAllWeatherLogs(ctx context.Context) ([]models.WeatherLog, error)

	CreateFishCaught(ctx context.Context, fish models.FishCaught) (models.FishCaught, WriteOutcome, error)
	UpdateFishCaught(ctx context.Context, fish models.FishCaught) (models.FishCaught, WriteOutcome, error)
	DeleteFishCaught(ctx context.Context, id string) (WriteOutcome, error)
	GetFishCaughtForTrip(ctx context.Context, tripID int64) ([]models.FishCaught, error)
	GetAllFishCaught(ctx context.Context) ([]models.FishCaught, error)
	// GetFishPhoto returns the decoded photo bytes of a catch and their mime type.
	GetFishPhoto(ctx context.Context, id string) ([]byte, string, error)

	// UpsertTripFromImport writes the trip unless the stored content hash
	// already matches, in which case nothing is written.
	UpsertTripFromImport(ctx context.Context, trip models.Trip) (UpsertOutcome, error)
	UpsertWeatherLogFromImport(ctx context.Context, log models.WeatherLog) (UpsertOutcome, error)
	UpsertFishCaughtFromImport(ctx context.Context, fish models.FishCaught) (UpsertOutcome, error)

	// MergeLocalDataForUser uploads records kept locally as a guest into the
	// signed-in user's Remote Store and removes orphaned children.
	MergeLocalDataForUser(ctx context.Context, userID string) (MergeResult, error)

	// ClearRemoteUserData deletes every remote document and blob of userID,
	// clears the local id mappings and the sync queue. progress may be nil.
	ClearRemoteUserData(ctx context.Context, userID string, progress func(models.WipeProgress)) error

	ObjectNeedsEncryption(collection models.Collection, doc models.Document) bool

	DrainSyncQueue(ctx context.Context) *Task[DrainResult]
	DrainSyncQueueAggressive(ctx context.Context) (DrainResult, error)
	SyncStatus(ctx context.Context) (SyncStatus, error)
}

// MigrationStatus is the persisted migration progress of one user.
type MigrationStatus struct {
	UserID    string                                    `json:"userId"`
	Running   bool                                      `json:"running"`
	Completed bool                                      `json:"completed"`
	States    map[models.Collection]CollectionProgress `json:"states"`
}

// CollectionProgress is one collection's migration state and phase.
type CollectionProgress struct {
	models.CollectionMigrationState
	Phase CollectionPhase `json:"-"`
}

// MigrationJob encrypts remote documents that still carry plaintext in
// sensitive fields. It resumes from a per-collection cursor, so completed
// ground is never scanned twice.
type MigrationJob interface {
	// Run starts a pass for the signed-in user. A call made while a pass is
	// running returns the running pass's task.
	Run(ctx context.Context) *Task[models.MigrationSummary]
	// Abort asks a running pass to stop at the next batch boundary.
	Abort(ctx context.Context) error
	// Reset forgets the progress of userID so the next pass starts over.
	Reset(ctx context.Context, userID string) error
	State(ctx context.Context, userID string) (MigrationStatus, error)
	// Stop cancels a running pass and waits for it to return. Sign-in and
	// sign-out call it before the encryption key changes.
	Stop(ctx context.Context) error
}

// SyncJob is the periodic safety sync: it drains the queue, nudges the
// migration and records the last sync time.
type SyncJob interface {
	// Start launches the periodic loop, stopping any previous one first.
	Start(ctx context.Context, interval time.Duration)
	// RunOnce performs a single sync round.
	RunOnce(ctx context.Context) error
	// Stop cancels the loop and waits for it to exit.
	Stop()
}
