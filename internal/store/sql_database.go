package store

import (
	"context"
	"database/sql"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/migrations"
	sq "github.com/Masterminds/squirrel"
)

// DB is the Local Store connection shared by every SQLite repository.
type DB struct {
	*sql.DB
	logger *logger.Logger
}

// Migrate brings the schema up to date in place.
func (db *DB) Migrate(ctx context.Context) error {
	return migrations.MigrateLocal(ctx, db.DB)
}

// builder returns a squirrel statement builder bound to SQLite placeholders.
func (db *DB) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}
