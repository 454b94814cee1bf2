package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/validators"
	"github.com/MKhiriev/go-fish-log/models"
)

// prepareChildID assigns a "<tripId>-<suffix>" id when none is given and
// checks a given one. Guests may only attach records to a stored trip.
func (s *dataService) prepareChildID(ctx context.Context, obj any, id *string, tripID int64) error {
	if *id == "" {
		*id = s.ids.ChildID(tripID)
	} else if err := s.validator.Validate(ctx, obj, validators.FieldID); err != nil {
		return err
	}

	if s.status.Session().IsAuthenticated() {
		return nil
	}
	if _, err := s.trips.GetTrip(ctx, tripID); err != nil {
		return fmt.Errorf("trip %d: %w", tripID, localErr(err))
	}
	return nil
}

// ── weather logs ─────────────────────────────────────────────────────────────

func (s *dataService) CreateWeatherLog(ctx context.Context, log models.WeatherLog) (models.WeatherLog, WriteOutcome, error) {
	log = validators.SanitizeWeatherLog(log)
	if err := s.validator.Validate(ctx, log); err != nil {
		return models.WeatherLog{}, LocalOnly, err
	}
	if err := s.prepareChildID(ctx, &log, &log.ID, log.TripID); err != nil {
		return models.WeatherLog{}, LocalOnly, err
	}
	return s.writeWeatherLog(ctx, models.OperationCreate, log)
}

func (s *dataService) UpdateWeatherLog(ctx context.Context, log models.WeatherLog) (models.WeatherLog, WriteOutcome, error) {
	log = validators.SanitizeWeatherLog(log)
	if err := s.validator.Validate(ctx, log, validators.FieldTripID, validators.FieldID); err != nil {
		return models.WeatherLog{}, LocalOnly, err
	}
	return s.writeWeatherLog(ctx, models.OperationUpdate, log)
}

func (s *dataService) writeWeatherLog(ctx context.Context, op models.SyncOperation, log models.WeatherLog) (models.WeatherLog, WriteOutcome, error) {
	log.RemoteDocID = ""
	payload, err := payloadOf(log, s.status.Session().UserID)
	if err != nil {
		return models.WeatherLog{}, LocalOnly, err
	}

	remoteID, outcome, err := s.mirror(ctx, op, models.CollectionWeatherLogs, log.ID, payload, func() error {
		return s.weatherLogs.Save(ctx, log)
	})
	if err != nil {
		return models.WeatherLog{}, outcome, err
	}
	log.RemoteDocID = remoteID
	return log, outcome, nil
}

func (s *dataService) DeleteWeatherLog(ctx context.Context, id string) (WriteOutcome, error) {
	if id == "" {
		return LocalOnly, validators.ErrInvalidChildID
	}
	return s.remove(ctx, models.CollectionWeatherLogs, id, func() error {
		return s.weatherLogs.Delete(ctx, id)
	})
}

func (s *dataService) GetWeatherLogsForTrip(ctx context.Context, tripID int64) ([]models.WeatherLog, error) {
	q := adapter.Query{Collection: models.CollectionWeatherLogs}.Where(models.FieldTripID, tripID)
	if logs, ok := remoteChildren(ctx, s, q, s.weatherLogs.Get, func(w models.WeatherLog) bool { return w.TripID == tripID },
		func(w *models.WeatherLog, id string) { w.RemoteDocID = id }); ok {
		return logs, nil
	}
	return s.weatherLogs.GetByTrip(ctx, tripID)
}

func (s *dataService) GetAllWeatherLogs(ctx context.Context) ([]models.WeatherLog, error) {
	q := adapter.Query{Collection: models.CollectionWeatherLogs}
	if logs, ok := remoteChildren(ctx, s, q, s.weatherLogs.Get, func(models.WeatherLog) bool { return true },
		func(w *models.WeatherLog, id string) { w.RemoteDocID = id }); ok {
		return logs, nil
	}
	return s.weatherLogs.GetAll(ctx)
}

// ── catches ──────────────────────────────────────────────────────────────────

func (s *dataService) CreateFishCaught(ctx context.Context, fish models.FishCaught) (models.FishCaught, WriteOutcome, error) {
	fish = validators.SanitizeFishCaught(fish)
	if err := s.validator.Validate(ctx, fish); err != nil {
		return models.FishCaught{}, LocalOnly, err
	}
	if err := s.prepareChildID(ctx, &fish, &fish.ID, fish.TripID); err != nil {
		return models.FishCaught{}, LocalOnly, err
	}
	return s.writeFishCaught(ctx, models.OperationCreate, fish)
}

func (s *dataService) UpdateFishCaught(ctx context.Context, fish models.FishCaught) (models.FishCaught, WriteOutcome, error) {
	fish = validators.SanitizeFishCaught(fish)
	if err := s.validator.Validate(ctx, fish,
		validators.FieldTripID, validators.FieldSpecies, validators.FieldPhoto, validators.FieldID); err != nil {
		return models.FishCaught{}, LocalOnly, err
	}
	return s.writeFishCaught(ctx, models.OperationUpdate, fish)
}

func (s *dataService) writeFishCaught(ctx context.Context, op models.SyncOperation, fish models.FishCaught) (models.FishCaught, WriteOutcome, error) {
	fish.RemoteDocID = ""
	fish = s.prepareFishForRemote(ctx, fish)

	payload, err := payloadOf(fish, s.status.Session().UserID)
	if err != nil {
		return models.FishCaught{}, LocalOnly, err
	}

	remoteID, outcome, err := s.mirror(ctx, op, models.CollectionFishCaught, fish.ID, payload, func() error {
		return s.fishCaught.Save(ctx, fish)
	})
	if err != nil {
		return models.FishCaught{}, outcome, err
	}
	fish.RemoteDocID = remoteID
	return fish, outcome, nil
}

// prepareFishForRemote moves an inline photo to blob storage and resolves
// free-text gear to tackle ids. Both only happen when signed in and online.
func (s *dataService) prepareFishForRemote(ctx context.Context, fish models.FishCaught) models.FishCaught {
	userID, ok := s.status.remoteUser()
	if !ok {
		return fish
	}
	fish = s.storePhoto(ctx, userID, fish)
	return s.resolveGear(ctx, userID, fish)
}

func (s *dataService) DeleteFishCaught(ctx context.Context, id string) (WriteOutcome, error) {
	if id == "" {
		return LocalOnly, validators.ErrInvalidChildID
	}
	return s.remove(ctx, models.CollectionFishCaught, id, func() error {
		return s.fishCaught.Delete(ctx, id)
	})
}

func (s *dataService) GetFishCaughtForTrip(ctx context.Context, tripID int64) ([]models.FishCaught, error) {
	q := adapter.Query{Collection: models.CollectionFishCaught}.Where(models.FieldTripID, tripID)
	if fish, ok := remoteChildren(ctx, s, q, s.fishCaught.Get, func(f models.FishCaught) bool { return f.TripID == tripID },
		func(f *models.FishCaught, id string) { f.RemoteDocID = id }); ok {
		return fish, nil
	}
	return s.fishCaught.GetByTrip(ctx, tripID)
}

func (s *dataService) GetAllFishCaught(ctx context.Context) ([]models.FishCaught, error) {
	q := adapter.Query{Collection: models.CollectionFishCaught}
	if fish, ok := remoteChildren(ctx, s, q, s.fishCaught.Get, func(models.FishCaught) bool { return true },
		func(f *models.FishCaught, id string) { f.RemoteDocID = id }); ok {
		return fish, nil
	}
	return s.fishCaught.GetAll(ctx)
}

// getFishCaught reads one catch, remotely when signed in and online.
func (s *dataService) getFishCaught(ctx context.Context, id string) (models.FishCaught, error) {
	if userID, ok := s.status.remoteUser(); ok && s.pendingOps(models.CollectionFishCaught)[id] == "" {
		doc, found, err := s.writer.locate(ctx, userID, models.CollectionFishCaught, id)
		if err == nil {
			if !found {
				return models.FishCaught{}, ErrNotFound
			}
			var fish models.FishCaught
			if err = decodeRemote(ctx, s.engine, doc, &fish); err != nil {
				return models.FishCaught{}, err
			}
			fish.RemoteDocID = doc.ID
			return fish, nil
		}
		logger.FromContext(ctx).Warn().Err(err).Str("func", "dataService.getFishCaught").Msg("remote read failed, using local store")
	}

	fish, err := s.fishCaught.Get(ctx, id)
	if err != nil {
		return models.FishCaught{}, fmt.Errorf("catch %s: %w", id, localErr(err))
	}
	return fish, nil
}

// remoteChildren reads weather logs or catches remotely when signed in and
// online, with queued local writes laid over. ok is false when the caller
// should read the Local Store instead.
func remoteChildren[T models.TripChild](
	ctx context.Context,
	s *dataService,
	q adapter.Query,
	local func(context.Context, string) (T, error),
	keep func(T) bool,
	setRemoteID func(*T, string),
) ([]T, bool) {
	userID, online := s.status.remoteUser()
	if !online {
		return nil, false
	}
	q.UserID = userID

	items, err := queryRemote(ctx, s, q, setRemoteID)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).
			Str("func", "remoteChildren").
			Str("collection", q.Collection.String()).
			Msg("remote read failed, using local store")
		return nil, false
	}

	items = overlay(items, s.pendingOps(q.Collection),
		func(item T) string { return item.LocalID() },
		func(id string) (T, error) { return local(ctx, id) },
		keep,
	)
	slices.SortFunc(items, func(a, b T) int {
		return cmp.Or(cmp.Compare(a.ParentID(), b.ParentID()), cmp.Compare(a.LocalID(), b.LocalID()))
	})
	return items, true
}
