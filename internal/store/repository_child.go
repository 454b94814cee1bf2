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

// childRepository stores trip children as JSON rows of one table.
type childRepository[T models.TripChild] struct {
	*DB
	table  string
	logger *logger.Logger
}

func NewWeatherLogRepository(db *DB, logger *logger.Logger) WeatherLogRepository {
	return &childRepository[models.WeatherLog]{DB: db, table: tableWeatherLogs, logger: logger}
}

func NewFishCaughtRepository(db *DB, logger *logger.Logger) FishCaughtRepository {
	return &childRepository[models.FishCaught]{DB: db, table: tableFishCaught, logger: logger}
}

func (r *childRepository[T]) Save(ctx context.Context, item T) error {
	log := logger.FromContext(ctx)

	if item.LocalID() == "" {
		return ErrInvalidRecord
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingRecord, err)
	}

	if _, err = r.DB.ExecContext(ctx, fmt.Sprintf(saveChild, r.table), item.LocalID(), item.ParentID(), string(data)); err != nil {
		log.Err(err).
			Str("func", "childRepository.Save").
			Str("table", r.table).
			Str("local_id", item.LocalID()).
			Msg("failed to execute upsert")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *childRepository[T]) Get(ctx context.Context, id string) (T, error) {
	log := logger.FromContext(ctx)
	var item T

	query, args, err := r.builder().
		Select("data").
		From(r.table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return item, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var raw string
	if err = r.DB.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return item, ErrNotFound
		}
		log.Err(err).
			Str("func", "childRepository.Get").
			Str("table", r.table).
			Str("local_id", id).
			Msg("failed to query record")
		return item, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	if err = json.Unmarshal([]byte(raw), &item); err != nil {
		return item, fmt.Errorf("%w: %w", ErrEncodingRecord, err)
	}
	return item, nil
}

func (r *childRepository[T]) GetAll(ctx context.Context) ([]T, error) {
	return r.list(ctx, nil)
}

func (r *childRepository[T]) GetByTrip(ctx context.Context, tripID int64) ([]T, error) {
	return r.list(ctx, sq.Eq{"trip_id": tripID})
}

func (r *childRepository[T]) list(ctx context.Context, where sq.Sqlizer) ([]T, error) {
	log := logger.FromContext(ctx)

	builder := r.builder().
		Select("data").
		From(r.table).
		OrderBy("trip_id", "id")
	if where != nil {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "childRepository.list").Str("table", r.table).Msg("failed to query records")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		var raw string
		if err = rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}

		var item T
		if err = json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncodingRecord, err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return items, nil
}

func (r *childRepository[T]) Delete(ctx context.Context, id string) error {
	log := logger.FromContext(ctx)

	query, args, err := r.builder().Delete(r.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "childRepository.Delete").
			Str("table", r.table).
			Str("local_id", id).
			Msg("failed to delete record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *childRepository[T]) DeleteOrphans(ctx context.Context) (int64, error) {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(deleteOrphanChildren, r.table))
	if err != nil {
		log.Err(err).Str("func", "childRepository.DeleteOrphans").Str("table", r.table).Msg("failed to delete orphans")
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if removed > 0 {
		log.Info().Str("func", "childRepository.DeleteOrphans").Str("table", r.table).Int64("removed", removed).Msg("orphaned records removed")
	}
	return removed, nil
}
