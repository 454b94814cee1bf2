// Package migrations embeds and applies the schema migrations of both
// stores: the local SQLite database and the remote Postgres document store.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed local/*.sql remote/*.sql
var embedMigrations embed.FS

// ErrNilDB is returned when a migration is requested without a connection.
var ErrNilDB = errors.New("migration error: db is nil")

// MigrateLocal brings the Local Store schema up to date. Upgrades run in
// place and never drop user records.
func MigrateLocal(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, goose.DialectSQLite3, "local")
}

// MigrateRemote brings the Remote Store schema up to date.
func MigrateRemote(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, goose.DialectPostgres, "remote")
}

func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	if db == nil {
		return ErrNilDB
	}

	fsys, err := fs.Sub(embedMigrations, dir)
	if err != nil {
		return fmt.Errorf("migration error opening %s migrations: %w", dir, err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("migration error creating provider: %w", err)
	}

	if _, err = provider.Up(ctx); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}
