package adapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MKhiriev/go-fish-log/internal/config"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/MKhiriev/go-fish-log/migrations"
	"github.com/MKhiriev/go-fish-log/models"
	sq "github.com/Masterminds/squirrel"
)

// CreatedAtIndex is the composite index ordered migration queries rely on.
const CreatedAtIndex = "documents_user_created_idx"

const (
	tableDocuments = "documents"

	upsertDocument = `
		INSERT INTO documents (id, collection, user_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			user_id    = excluded.user_id,
			data       = excluded.data,
			updated_at = now();`

	mergeDocument = `
		UPDATE documents
		SET data = data || $1::jsonb, updated_at = now()
		WHERE collection = $2 AND id = $3;`

	indexExists = `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE tablename = 'documents' AND indexname = $1);`
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type postgresRemoteStore struct {
	db       *sql.DB
	ids      *utils.UUIDGenerator
	helpLink string
	// indexReady latches once the ordering index has been seen.
	indexReady atomic.Bool
	logger     *logger.Logger
}

// NewConnectPostgres opens the Remote Store database and applies its
// migrations.
func NewConnectPostgres(ctx context.Context, cfg config.Remote, log *logger.Logger) (*sql.DB, error) {
	conn, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error occurred during database connection")
		return nil, fmt.Errorf("error occurred during database connection: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error connecting database (ping)")
		conn.Close()
		return nil, mapPostgresError("ping", err)
	}

	if err = migrations.MigrateRemote(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	log.Info().Str("func", "NewConnectPostgres").Msg("connected to remote store successfully")

	return conn, nil
}

// NewPostgresRemoteStore builds a RemoteStore over the "documents" table.
// helpLink is attached to missing-index errors.
func NewPostgresRemoteStore(db *sql.DB, helpLink string, logger *logger.Logger) RemoteStore {
	return &postgresRemoteStore{
		db:       db,
		ids:      utils.NewUUIDGenerator(),
		helpLink: helpLink,
		logger:   logger,
	}
}

func (s *postgresRemoteStore) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func (s *postgresRemoteStore) Add(ctx context.Context, collection models.Collection, data models.Document) (string, error) {
	id := s.ids.Generate()
	if err := s.upsert(ctx, s.db, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *postgresRemoteStore) Set(ctx context.Context, collection models.Collection, id string, data models.Document) error {
	return s.upsert(ctx, s.db, collection, id, data)
}

func (s *postgresRemoteStore) upsert(ctx context.Context, ex execer, collection models.Collection, id string, data models.Document) error {
	log := logger.FromContext(ctx)

	if id == "" || !collection.Valid() {
		return ErrInvalidDocument
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	if _, err = ex.ExecContext(ctx, upsertDocument, id, collection.String(), data.String(models.FieldUserID), raw); err != nil {
		log.Err(err).
			Str("func", "postgresRemoteStore.upsert").
			Str("collection", collection.String()).
			Str("doc_id", id).
			Msg("failed to write document")
		return mapPostgresError("set document", err)
	}
	return nil
}

func (s *postgresRemoteStore) Update(ctx context.Context, collection models.Collection, id string, data models.Document) error {
	return s.merge(ctx, s.db, collection, id, data)
}

func (s *postgresRemoteStore) merge(ctx context.Context, ex execer, collection models.Collection, id string, data models.Document) error {
	log := logger.FromContext(ctx)

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	res, err := ex.ExecContext(ctx, mergeDocument, raw, collection.String(), id)
	if err != nil {
		log.Err(err).
			Str("func", "postgresRemoteStore.merge").
			Str("collection", collection.String()).
			Str("doc_id", id).
			Msg("failed to update document")
		return mapPostgresError("update document", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return mapPostgresError("update document", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresRemoteStore) Get(ctx context.Context, collection models.Collection, id string) (models.RemoteDocument, error) {
	query, args, err := s.selectDocuments().
		Where(sq.Eq{"collection": collection.String(), "id": id}).
		ToSql()
	if err != nil {
		return models.RemoteDocument{}, fmt.Errorf("build query: %w", err)
	}

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return models.RemoteDocument{}, mapPostgresError("get document", err)
	}
	return doc, nil
}

func (s *postgresRemoteStore) Delete(ctx context.Context, collection models.Collection, id string) error {
	return s.remove(ctx, s.db, collection, id)
}

func (s *postgresRemoteStore) remove(ctx context.Context, ex execer, collection models.Collection, id string) error {
	query, args, err := s.builder().
		Delete(tableDocuments).
		Where(sq.Eq{"collection": collection.String(), "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err = ex.ExecContext(ctx, query, args...); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "postgresRemoteStore.remove").
			Str("collection", collection.String()).
			Str("doc_id", id).
			Msg("failed to delete document")
		return mapPostgresError("delete document", err)
	}
	return nil
}

func (s *postgresRemoteStore) Query(ctx context.Context, q Query) ([]models.RemoteDocument, error) {
	log := logger.FromContext(ctx)

	if q.OrderByCreatedAt {
		if err := s.ensureIndex(ctx, q.Collection); err != nil {
			return nil, err
		}
	}

	builder := s.selectDocuments().
		Where(sq.Eq{"collection": q.Collection.String(), "user_id": q.UserID})

	for _, f := range q.Filters {
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encode filter %q: %w", f.Field, err)
		}
		builder = builder.Where(sq.Expr("data -> ? = ?::jsonb", f.Field, string(value)))
	}

	if q.OrderByCreatedAt {
		switch {
		case q.CreatedAfter != nil && q.CreatedAfterID != "":
			builder = builder.Where(sq.Expr("(created_at, id) > (?, ?)", *q.CreatedAfter, q.CreatedAfterID))
		case q.CreatedAfter != nil:
			builder = builder.Where(sq.Gt{"created_at": *q.CreatedAfter})
		}
		builder = builder.OrderBy("created_at ASC NULLS FIRST", "id ASC")
	}
	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "postgresRemoteStore.Query").
			Str("collection", q.Collection.String()).
			Msg("failed to query documents")
		return nil, mapPostgresError("query documents", err)
	}
	defer rows.Close()

	docs := make([]models.RemoteDocument, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, mapPostgresError("scan document", err)
		}
		docs = append(docs, doc)
	}
	if err = rows.Err(); err != nil {
		return nil, mapPostgresError("query documents", err)
	}
	return docs, nil
}

func (s *postgresRemoteStore) CommitBatch(ctx context.Context, ops []BatchOp) error {
	log := logger.FromContext(ctx)

	if len(ops) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).Str("func", "postgresRemoteStore.CommitBatch").Msg("failed to begin transaction")
		return mapPostgresError("begin batch", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		switch op.Kind {
		case BatchSet:
			err = s.upsert(ctx, tx, op.Collection, op.ID, op.Data)
		case BatchUpdate:
			err = s.merge(ctx, tx, op.Collection, op.ID, op.Data)
		case BatchDelete:
			err = s.remove(ctx, tx, op.Collection, op.ID)
		default:
			err = fmt.Errorf("unknown batch op %d", op.Kind)
		}
		if err != nil {
			log.Err(err).
				Str("func", "postgresRemoteStore.CommitBatch").
				Stringer("op", op.Kind).
				Str("doc_id", op.ID).
				Msg("batch aborted")
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return mapPostgresError("commit batch", err)
	}
	return nil
}

func (s *postgresRemoteStore) ensureIndex(ctx context.Context, collection models.Collection) error {
	if s.indexReady.Load() {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, indexExists, CreatedAtIndex).Scan(&exists); err != nil {
		return mapPostgresError("check index", err)
	}
	if !exists {
		return &IndexMissingError{Collection: collection, Index: CreatedAtIndex, Link: s.helpLink}
	}

	s.indexReady.Store(true)
	return nil
}

func (s *postgresRemoteStore) selectDocuments() sq.SelectBuilder {
	return s.builder().
		Select("id", "collection", "user_id", "data", "created_at", "updated_at").
		From(tableDocuments)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (models.RemoteDocument, error) {
	var (
		doc        models.RemoteDocument
		collection string
		raw        []byte
		createdAt  sql.NullTime
		updatedAt  sql.NullTime
	)
	if err := row.Scan(&doc.ID, &collection, &doc.UserID, &raw, &createdAt, &updatedAt); err != nil {
		return models.RemoteDocument{}, err
	}

	doc.Collection = models.Collection(collection)
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return models.RemoteDocument{}, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	if createdAt.Valid {
		t := createdAt.Time
		doc.CreatedAt = &t
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		doc.UpdatedAt = &t
	}
	return doc, nil
}
