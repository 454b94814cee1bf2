package service

import (
	"context"
	"fmt"
	"runtime"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/MKhiriev/go-fish-log/internal/validators"
	"github.com/MKhiriev/go-fish-log/models"
)

// volatileFields never take part in a content hash: ids, ownership,
// timestamps, encryption markers and cached values.
var volatileFields = []string{
	models.FieldID,
	models.FieldUserID,
	models.FieldContentHash,
	models.FieldCreatedAt,
	models.FieldUpdatedAt,
	models.FieldEncrypted,
	models.FieldEncTyped,
	"remoteDocId",
	"photoUrl",
}

// contentHashOf hashes the meaningful fields of a plaintext entity.
func contentHashOf(entity any) (string, error) {
	doc, err := models.ToDocument(entity)
	if err != nil {
		return "", err
	}
	return utils.ContentHash(doc, volatileFields...)
}

func (s *dataService) UpsertTripFromImport(ctx context.Context, trip models.Trip) (UpsertOutcome, error) {
	trip = validators.SanitizeTrip(trip)
	if err := s.validator.Validate(ctx, trip, validators.FieldID, validators.FieldDate, validators.FieldHours); err != nil {
		return UpsertLocalOnly, err
	}

	hash, err := contentHashOf(trip)
	if err != nil {
		return UpsertLocalOnly, err
	}
	trip.ContentHash = hash
	trip.RemoteDocID = ""

	return s.upsert(ctx, models.CollectionTrips, trip.LocalID(), hash,
		func() (models.Document, error) { return payloadOf(trip, s.status.Session().UserID) },
		func() error { return s.trips.SaveTrip(ctx, trip) },
	)
}

func (s *dataService) UpsertWeatherLogFromImport(ctx context.Context, log models.WeatherLog) (UpsertOutcome, error) {
	log = validators.SanitizeWeatherLog(log)
	if err := s.validator.Validate(ctx, log, validators.FieldTripID, validators.FieldID); err != nil {
		return UpsertLocalOnly, err
	}

	hash, err := contentHashOf(log)
	if err != nil {
		return UpsertLocalOnly, err
	}
	log.ContentHash = hash
	log.RemoteDocID = ""

	return s.upsert(ctx, models.CollectionWeatherLogs, log.ID, hash,
		func() (models.Document, error) { return payloadOf(log, s.status.Session().UserID) },
		func() error { return s.weatherLogs.Save(ctx, log) },
	)
}

func (s *dataService) UpsertFishCaughtFromImport(ctx context.Context, fish models.FishCaught) (UpsertOutcome, error) {
	fish = validators.SanitizeFishCaught(fish)
	if err := s.validator.Validate(ctx, fish,
		validators.FieldTripID, validators.FieldSpecies, validators.FieldPhoto, validators.FieldID); err != nil {
		return UpsertLocalOnly, err
	}

	// hashed before the photo leaves the record so an unchanged re-import
	// never uploads anything
	hash, err := contentHashOf(fish)
	if err != nil {
		return UpsertLocalOnly, err
	}
	fish.ContentHash = hash
	fish.RemoteDocID = ""

	return s.upsert(ctx, models.CollectionFishCaught, fish.ID, hash,
		func() (models.Document, error) {
			fish = s.prepareFishForRemote(ctx, fish)
			return payloadOf(fish, s.status.Session().UserID)
		},
		func() error { return s.fishCaught.Save(ctx, fish) },
	)
}

// upsert is the hash-compare-then-write path shared by imports and the
// guest merge. payload is built lazily so nothing is prepared for a skip.
func (s *dataService) upsert(
	ctx context.Context,
	collection models.Collection,
	localID, hash string,
	payload func() (models.Document, error),
	saveLocal func() error,
) (UpsertOutcome, error) {
	log := logger.FromContext(ctx)

	if !s.status.Session().IsAuthenticated() {
		if err := saveLocal(); err != nil {
			return UpsertLocalOnly, err
		}
		return UpsertLocalOnly, nil
	}

	if userID, ok := s.status.remoteUser(); ok {
		outcome, err := s.upsertRemote(ctx, userID, collection, localID, hash, payload)
		if err == nil {
			return outcome, nil
		}
		log.Warn().Err(err).
			Str("func", "dataService.upsert").
			Str("collection", collection.String()).
			Str("local_id", localID).
			Msg("remote upsert failed, keeping record locally")
	}

	doc, err := payload()
	if err != nil {
		return UpsertLocalOnly, err
	}
	if err = s.keepAndQueue(ctx, models.OperationUpdate, collection, doc, saveLocal); err != nil {
		return UpsertLocalOnly, err
	}
	return UpsertQueued, nil
}

func (s *dataService) upsertRemote(
	ctx context.Context,
	userID string,
	collection models.Collection,
	localID, hash string,
	payload func() (models.Document, error),
) (UpsertOutcome, error) {
	existing, found, err := s.writer.locate(ctx, userID, collection, localID)
	if err != nil {
		return UpsertLocalOnly, err
	}
	if found && existing.Data.String(models.FieldContentHash) == hash {
		return UpsertSkipped, nil
	}

	doc, err := payload()
	if err != nil {
		return UpsertLocalOnly, err
	}
	encrypted := s.engine.EncryptFields(ctx, collection, doc)

	if found {
		if err = s.remote.Set(ctx, collection, existing.ID, encrypted); err != nil {
			return UpsertLocalOnly, err
		}
		return UpsertUpdated, nil
	}
	if _, _, err = s.writer.add(ctx, userID, collection, localID, encrypted); err != nil {
		return UpsertLocalOnly, err
	}
	return UpsertCreated, nil
}

// ── guest to user merge ──────────────────────────────────────────────────────

func (c *MergeCounts) add(outcome UpsertOutcome, err error) {
	if err != nil {
		c.Failed++
		return
	}
	switch outcome {
	case UpsertCreated:
		c.Created++
	case UpsertUpdated:
		c.Updated++
	case UpsertSkipped:
		c.Skipped++
	case UpsertQueued:
		c.Queued++
	case UpsertLocalOnly:
		c.LocalOnly++
	}
}

// mergeChunks upserts items chunk by chunk, yielding between chunks and
// stopping when ctx ends.
func mergeChunks[T any](ctx context.Context, items []T, size int, counts *MergeCounts, upsert func(context.Context, T) (UpsertOutcome, error)) error {
	log := logger.FromContext(ctx)

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		for _, item := range items[start:end] {
			outcome, err := upsert(ctx, item)
			if err != nil {
				log.Warn().Err(err).Str("func", "mergeChunks").Msg("record not merged")
			}
			counts.add(outcome, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

func (s *dataService) MergeLocalDataForUser(ctx context.Context, userID string) (MergeResult, error) {
	var res MergeResult

	session := s.status.Session()
	if !session.IsAuthenticated() {
		return res, ErrNotAuthenticated
	}
	if session.UserID != userID {
		return res, ErrUserMismatch
	}
	if !s.status.IsOnline() {
		return res, ErrOffline
	}
	ctx = logger.WithUser(ctx, userID)
	log := logger.FromContext(ctx)

	trips, err := s.trips.GetAllTrips(ctx)
	if err != nil {
		return res, fmt.Errorf("read local trips: %w", err)
	}
	if err = mergeChunks(ctx, trips, s.chunkSize, &res.Trips, s.UpsertTripFromImport); err != nil {
		return res, err
	}

	logs, err := s.weatherLogs.GetAll(ctx)
	if err != nil {
		return res, fmt.Errorf("read local weather logs: %w", err)
	}
	if err = mergeChunks(ctx, logs, s.chunkSize, &res.WeatherLogs, s.UpsertWeatherLogFromImport); err != nil {
		return res, err
	}

	fish, err := s.fishCaught.GetAll(ctx)
	if err != nil {
		return res, fmt.Errorf("read local catches: %w", err)
	}
	if err = mergeChunks(ctx, fish, s.chunkSize, &res.FishCaught, s.UpsertFishCaughtFromImport); err != nil {
		return res, err
	}

	weatherOrphans, err := s.weatherLogs.DeleteOrphans(ctx)
	if err != nil {
		return res, fmt.Errorf("delete orphaned weather logs: %w", err)
	}
	fishOrphans, err := s.fishCaught.DeleteOrphans(ctx)
	if err != nil {
		return res, fmt.Errorf("delete orphaned catches: %w", err)
	}
	res.LocalOrphansRemoved = weatherOrphans + fishOrphans

	// background cleanup: failures are logged, never returned
	if err = s.cleanupRemoteOrphans(ctx, userID, &res); err != nil {
		log.Warn().Err(err).Str("func", "dataService.MergeLocalDataForUser").Msg("remote orphan cleanup failed")
	}

	log.Info().
		Str("func", "dataService.MergeLocalDataForUser").
		Interface("trips", res.Trips).
		Interface("weather_logs", res.WeatherLogs).
		Interface("fish_caught", res.FishCaught).
		Int64("local_orphans", res.LocalOrphansRemoved).
		Int("remote_orphans", res.RemoteOrphansRemoved).
		Msg("local data merged")
	return res, nil
}

// cleanupRemoteOrphans deletes remote weather logs and catches whose trip is
// unknown both remotely and locally, unless there are more candidates than
// the ceiling allows.
func (s *dataService) cleanupRemoteOrphans(ctx context.Context, userID string, res *MergeResult) error {
	known := make(map[string]struct{})

	tripDocs, err := s.remote.Query(ctx, adapter.Query{Collection: models.CollectionTrips, UserID: userID})
	if err != nil {
		return err
	}
	for _, doc := range tripDocs {
		known[models.LocalIDString(doc.Data[models.FieldID])] = struct{}{}
	}
	localTrips, err := s.trips.GetAllTrips(ctx)
	if err != nil {
		return err
	}
	for _, t := range localTrips {
		known[t.LocalID()] = struct{}{}
	}

	var orphans []models.RemoteDocument
	for _, collection := range []models.Collection{models.CollectionWeatherLogs, models.CollectionFishCaught} {
		docs, err := s.remote.Query(ctx, adapter.Query{Collection: collection, UserID: userID})
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if _, ok := known[models.LocalIDString(doc.Data[models.FieldTripID])]; !ok {
				orphans = append(orphans, doc)
			}
		}
	}

	if len(orphans) == 0 {
		return nil
	}
	if len(orphans) > s.orphanCeiling {
		res.RemoteOrphansSkipped = true
		logger.FromContext(ctx).Warn().
			Str("func", "dataService.cleanupRemoteOrphans").
			Int("candidates", len(orphans)).
			Int("ceiling", s.orphanCeiling).
			Msg("too many orphan candidates, cleanup skipped")
		return nil
	}

	ops := make([]adapter.BatchOp, 0, len(orphans))
	for _, doc := range orphans {
		ops = append(ops, adapter.BatchOp{Kind: adapter.BatchDelete, Collection: doc.Collection, ID: doc.ID})
	}
	if err = s.remote.CommitBatch(ctx, ops); err != nil {
		return err
	}
	for _, doc := range orphans {
		if err = s.mapper.Delete(ctx, userID, doc.Collection, models.LocalIDString(doc.Data[models.FieldID])); err != nil {
			return err
		}
	}
	res.RemoteOrphansRemoved = len(orphans)
	return nil
}
