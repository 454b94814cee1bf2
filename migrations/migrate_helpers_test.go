package migrations

import (
	"database/sql"
	"io/fs"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

func mustSub(t *testing.T, dir string) fs.FS {
	t.Helper()
	fsys, err := fs.Sub(embedMigrations, dir)
	require.NoError(t, err)
	return fsys
}

func newTestProvider(t *testing.T, db *sql.DB, fsys fs.FS) *goose.Provider {
	t.Helper()
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	require.NoError(t, err)
	return provider
}
