package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/store"
	"github.com/MKhiriev/go-fish-log/models"
)

const defaultSyncInterval = time.Minute

type syncJob struct {
	queue     SyncQueue
	migration MigrationJob
	kv        store.KeyValueRepository
	status    *Status

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncJob creates a syncJob. The job is idle until Start is called.
func NewSyncJob(queue SyncQueue, migration MigrationJob, kv store.KeyValueRepository, status *Status) SyncJob {
	return &syncJob{queue: queue, migration: migration, kv: kv, status: status}
}

// Start implements SyncJob. It stops any previously running loop, then
// launches a goroutine that calls RunOnce every interval. A non-positive
// interval defaults to one minute. The goroutine exits when ctx is cancelled
// or Stop is called.
func (j *syncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSyncInterval
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				if err := j.RunOnce(jobCtx); err != nil {
					logger.FromContext(jobCtx).Debug().Err(err).Str("func", "syncJob.Start").Msg("sync round skipped")
				}
			}
		}
	}()
}

// RunOnce drains the sync queue, starts the migration when it can run and
// records the time of the round. It does nothing for guests or offline.
func (j *syncJob) RunOnce(ctx context.Context) error {
	userID, ok := j.status.remoteUser()
	if !ok {
		return ErrOffline
	}
	ctx = logger.WithUser(ctx, userID)
	log := logger.FromContext(ctx)

	res, err := j.queue.Drain(ctx).Wait(ctx)
	if err != nil {
		return err
	}

	// the migration runs detached; its own task reports the result
	task := j.migration.Run(ctx)
	select {
	case <-task.Done():
		if _, err := task.Wait(ctx); err != nil && !errors.Is(err, ErrEncryptionNotReady) {
			log.Warn().Err(err).Str("func", "syncJob.RunOnce").Msg("migration pass failed")
		}
	default:
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err = j.kv.Set(ctx, models.LastSyncKey(userID), now); err != nil {
		return fmt.Errorf("record last sync: %w", err)
	}

	log.Debug().
		Str("func", "syncJob.RunOnce").
		Int("applied", res.Applied).
		Int("remaining", res.Remaining).
		Msg("safety sync round finished")
	return nil
}

// Stop implements SyncJob. It cancels the loop and blocks until the goroutine
// has exited. Safe to call when the job is not running.
func (j *syncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}
