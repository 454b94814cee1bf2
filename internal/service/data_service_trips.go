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

func (s *dataService) CreateTrip(ctx context.Context, trip models.Trip) (models.Trip, WriteOutcome, error) {
	trip = validators.SanitizeTrip(trip)
	if err := s.validator.Validate(ctx, trip); err != nil {
		return models.Trip{}, LocalOnly, err
	}
	if trip.ID == 0 {
		trip.ID = s.clock.next()
	}
	return s.writeTrip(ctx, models.OperationCreate, trip)
}

func (s *dataService) UpdateTrip(ctx context.Context, trip models.Trip) (models.Trip, WriteOutcome, error) {
	trip = validators.SanitizeTrip(trip)
	if err := s.validator.Validate(ctx, trip, validators.FieldID, validators.FieldDate, validators.FieldHours); err != nil {
		return models.Trip{}, LocalOnly, err
	}
	return s.writeTrip(ctx, models.OperationUpdate, trip)
}

func (s *dataService) writeTrip(ctx context.Context, op models.SyncOperation, trip models.Trip) (models.Trip, WriteOutcome, error) {
	session := s.status.Session()
	trip.RemoteDocID = ""

	payload, err := payloadOf(trip, session.UserID)
	if err != nil {
		return models.Trip{}, LocalOnly, err
	}

	remoteID, outcome, err := s.mirror(ctx, op, models.CollectionTrips, trip.LocalID(), payload, func() error {
		return s.trips.SaveTrip(ctx, trip)
	})
	if err != nil {
		return models.Trip{}, outcome, err
	}
	trip.RemoteDocID = remoteID
	return trip, outcome, nil
}

func (s *dataService) DeleteTrip(ctx context.Context, id int64) (WriteOutcome, error) {
	if id <= 0 {
		return LocalOnly, validators.ErrInvalidTrip
	}
	trip := models.Trip{ID: id}
	return s.remove(ctx, models.CollectionTrips, trip.LocalID(), func() error {
		return s.trips.DeleteTrip(ctx, id)
	})
}

func (s *dataService) GetTrip(ctx context.Context, id int64) (models.Trip, error) {
	log := logger.FromContext(ctx)
	localID := models.Trip{ID: id}.LocalID()

	if userID, ok := s.status.remoteUser(); ok {
		switch s.pendingOps(models.CollectionTrips)[localID] {
		case models.OperationDelete:
			return models.Trip{}, ErrNotFound
		case models.OperationCreate, models.OperationUpdate:
			return s.localTrip(ctx, id)
		}

		doc, found, err := s.writer.locate(ctx, userID, models.CollectionTrips, localID)
		if err == nil {
			if !found {
				return models.Trip{}, ErrNotFound
			}
			var trip models.Trip
			if err = decodeRemote(ctx, s.engine, doc, &trip); err != nil {
				return models.Trip{}, err
			}
			trip.RemoteDocID = doc.ID
			return trip, nil
		}
		log.Warn().Err(err).Str("func", "dataService.GetTrip").Msg("remote read failed, using local store")
	}
	return s.localTrip(ctx, id)
}

func (s *dataService) localTrip(ctx context.Context, id int64) (models.Trip, error) {
	trip, err := s.trips.GetTrip(ctx, id)
	if err != nil {
		return models.Trip{}, fmt.Errorf("trip %d: %w", id, localErr(err))
	}
	return trip, nil
}

func (s *dataService) GetAllTrips(ctx context.Context) ([]models.Trip, error) {
	if trips, ok := s.remoteTrips(ctx, adapter.Query{Collection: models.CollectionTrips}, func(models.Trip) bool { return true }); ok {
		return trips, nil
	}
	return s.trips.GetAllTrips(ctx)
}

func (s *dataService) GetTripsByDate(ctx context.Context, date string) ([]models.Trip, error) {
	if !validators.IsValidDate(date) {
		return nil, validators.ErrInvalidDate
	}
	q := adapter.Query{Collection: models.CollectionTrips}.Where(models.FieldDate, date)
	if trips, ok := s.remoteTrips(ctx, q, func(t models.Trip) bool { return t.Date == date }); ok {
		return trips, nil
	}
	return s.trips.GetTripsByDate(ctx, date)
}

// remoteTrips reads trips remotely when signed in and online. ok is false
// when the caller should read the Local Store instead.
func (s *dataService) remoteTrips(ctx context.Context, q adapter.Query, keep func(models.Trip) bool) ([]models.Trip, bool) {
	userID, online := s.status.remoteUser()
	if !online {
		return nil, false
	}
	q.UserID = userID

	trips, err := queryRemote(ctx, s, q, func(t *models.Trip, id string) { t.RemoteDocID = id })
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).
			Str("func", "dataService.remoteTrips").
			Msg("remote read failed, using local store")
		return nil, false
	}

	trips = overlay(trips, s.pendingOps(models.CollectionTrips),
		func(t models.Trip) string { return t.LocalID() },
		func(id string) (models.Trip, error) {
			tripID, _ := models.TripIDFromDocument(models.Document{models.FieldID: id}, models.FieldID)
			return s.trips.GetTrip(ctx, tripID)
		},
		keep,
	)
	slices.SortFunc(trips, func(a, b models.Trip) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.ID, b.ID))
	})
	return trips, true
}
