package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/models"
	sq "github.com/Masterminds/squirrel"
)

type tripRepository struct {
	*DB
	logger *logger.Logger
}

func NewTripRepository(db *DB, logger *logger.Logger) TripRepository {
	return &tripRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *tripRepository) SaveTrip(ctx context.Context, trip models.Trip) error {
	log := logger.FromContext(ctx)

	if trip.ID == 0 {
		return ErrInvalidRecord
	}

	data, err := json.Marshal(trip)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingRecord, err)
	}

	if _, err = r.DB.ExecContext(ctx, saveTrip, trip.ID, trip.Date, string(data)); err != nil {
		log.Err(err).
			Str("func", "tripRepository.SaveTrip").
			Int64("local_id", trip.ID).
			Msg("failed to execute upsert for trip")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *tripRepository) GetTrip(ctx context.Context, id int64) (models.Trip, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.builder().
		Select("data").
		From(tableTrips).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return models.Trip{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var raw string
	if err = r.DB.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Trip{}, ErrNotFound
		}
		log.Err(err).
			Str("func", "tripRepository.GetTrip").
			Int64("local_id", id).
			Msg("failed to query trip")
		return models.Trip{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	var trip models.Trip
	if err = json.Unmarshal([]byte(raw), &trip); err != nil {
		return models.Trip{}, fmt.Errorf("%w: %w", ErrEncodingRecord, err)
	}
	return trip, nil
}

func (r *tripRepository) GetAllTrips(ctx context.Context) ([]models.Trip, error) {
	return r.list(ctx, nil)
}

func (r *tripRepository) GetTripsByDate(ctx context.Context, date string) ([]models.Trip, error) {
	return r.list(ctx, sq.Eq{"date": date})
}

func (r *tripRepository) list(ctx context.Context, where sq.Sqlizer) ([]models.Trip, error) {
	log := logger.FromContext(ctx)

	builder := r.builder().
		Select("data").
		From(tableTrips).
		OrderBy("date", "id")
	if where != nil {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "tripRepository.list").Msg("failed to query trips")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	trips := make([]models.Trip, 0)
	for rows.Next() {
		var raw string
		if err = rows.Scan(&raw); err != nil {
			log.Err(err).Str("func", "tripRepository.list").Msg("failed to scan trip row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}

		var trip models.Trip
		if err = json.Unmarshal([]byte(raw), &trip); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncodingRecord, err)
		}
		trips = append(trips, trip)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return trips, nil
}

func (r *tripRepository) DeleteTrip(ctx context.Context, id int64) error {
	log := logger.FromContext(ctx)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).Str("func", "tripRepository.DeleteTrip").Msg("failed to begin transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	for _, table := range []string{tableWeatherLogs, tableFishCaught} {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(deleteChildrenOfTrip, table), id); err != nil {
			log.Err(err).
				Str("func", "tripRepository.DeleteTrip").
				Str("table", table).
				Int64("local_id", id).
				Msg("failed to cascade delete")
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
	}

	query, args, err := r.builder().Delete(tableTrips).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "tripRepository.DeleteTrip").
			Int64("local_id", id).
			Msg("failed to delete trip")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	return nil
}
