package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	sq "github.com/Masterminds/squirrel"
)

type keyValueRepository struct {
	*DB
	logger *logger.Logger
}

func NewKeyValueRepository(db *DB, logger *logger.Logger) KeyValueRepository {
	return &keyValueRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *keyValueRepository) Get(ctx context.Context, key string) (string, bool, error) {
	log := logger.FromContext(ctx)

	var value string
	err := r.DB.QueryRowContext(ctx, getKeyValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		log.Err(err).Str("func", "keyValueRepository.Get").Str("key", key).Msg("failed to read value")
		return "", false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return value, true, nil
}

func (r *keyValueRepository) Set(ctx context.Context, key, value string) error {
	log := logger.FromContext(ctx)

	if key == "" {
		return ErrInvalidRecord
	}

	if _, err := r.DB.ExecContext(ctx, saveKeyValue, key, value); err != nil {
		log.Err(err).Str("func", "keyValueRepository.Set").Str("key", key).Msg("failed to write value")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (r *keyValueRepository) Delete(ctx context.Context, key string) error {
	log := logger.FromContext(ctx)

	if _, err := r.DB.ExecContext(ctx, deleteKeyValue, key); err != nil {
		log.Err(err).Str("func", "keyValueRepository.Delete").Str("key", key).Msg("failed to delete value")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (r *keyValueRepository) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.builder().
		Select("k").
		From("kv_store").
		Where(hasPrefix(prefix)).
		OrderBy("k").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "keyValueRepository.ListKeys").Str("prefix", prefix).Msg("failed to list keys")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err = rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		keys = append(keys, k)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return keys, nil
}

func (r *keyValueRepository) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.builder().
		Delete("kv_store").
		Where(hasPrefix(prefix)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "keyValueRepository.DeleteByPrefix").Str("prefix", prefix).Msg("failed to delete keys")
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return removed, nil
}

// hasPrefix matches keys by exact leading substring. LIKE is unusable here
// because keys contain '_'.
func hasPrefix(prefix string) sq.Sqlizer {
	return sq.Expr("substr(k, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix)
}
