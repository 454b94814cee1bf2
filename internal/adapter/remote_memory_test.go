package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/MKhiriev/go-fish-log/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripDoc(userID string, localID int64, water string) models.Document {
	return models.Document{
		models.FieldUserID: userID,
		models.FieldID:     float64(localID),
		"water":            water,
	}
}

// ── CRUD ────────────────────────────────────────────────────────────────────

func TestMemoryRemoteStore_CRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRemoteStore("")

	id, err := m.Add(ctx, models.CollectionTrips, tripDoc("u1", 1, "Lake"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := m.Get(ctx, models.CollectionTrips, id)
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.UserID)
	assert.Equal(t, "Lake", doc.Data["water"])
	require.NotNil(t, doc.CreatedAt)
	created := *doc.CreatedAt

	// Update merges and keeps createdAt
	require.NoError(t, m.Update(ctx, models.CollectionTrips, id, models.Document{"notes": "windy"}))
	doc, err = m.Get(ctx, models.CollectionTrips, id)
	require.NoError(t, err)
	assert.Equal(t, "Lake", doc.Data["water"])
	assert.Equal(t, "windy", doc.Data["notes"])
	assert.Equal(t, created, *doc.CreatedAt)
	assert.True(t, doc.UpdatedAt.After(created))

	// Set replaces wholesale
	require.NoError(t, m.Set(ctx, models.CollectionTrips, id, tripDoc("u1", 1, "River")))
	doc, err = m.Get(ctx, models.CollectionTrips, id)
	require.NoError(t, err)
	assert.NotContains(t, doc.Data, "notes")
	assert.Equal(t, created, *doc.CreatedAt)

	assert.ErrorIs(t, m.Update(ctx, models.CollectionTrips, "missing", models.Document{}), ErrNotFound)

	require.NoError(t, m.Delete(ctx, models.CollectionTrips, id))
	_, err = m.Get(ctx, models.CollectionTrips, id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 5, m.Writes())
}

func TestMemoryRemoteStore_ReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRemoteStore("")

	data := tripDoc("u1", 1, "Lake")
	id, err := m.Add(ctx, models.CollectionTrips, data)
	require.NoError(t, err)

	data["water"] = "changed by caller"
	doc, err := m.Get(ctx, models.CollectionTrips, id)
	require.NoError(t, err)
	doc.Data["water"] = "changed again"

	doc, err = m.Get(ctx, models.CollectionTrips, id)
	require.NoError(t, err)
	assert.Equal(t, "Lake", doc.Data["water"])
}

// ── availability switches ───────────────────────────────────────────────────

func TestMemoryRemoteStore_Switches(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRemoteStore("https://help")

	id, err := m.Add(ctx, models.CollectionTrips, tripDoc("u1", 1, "Lake"))
	require.NoError(t, err)

	m.SetFailWrites(true)
	_, err = m.Add(ctx, models.CollectionTrips, tripDoc("u1", 2, "Lake"))
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = m.Get(ctx, models.CollectionTrips, id)
	assert.NoError(t, err, "reads keep working while writes fail")
	m.SetFailWrites(false)

	m.SetAvailable(false)
	_, err = m.Get(ctx, models.CollectionTrips, id)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = m.Query(ctx, Query{Collection: models.CollectionTrips, UserID: "u1"})
	assert.ErrorIs(t, err, ErrUnavailable)
	m.SetAvailable(true)

	m.SetIndexMissing(true)
	_, err = m.Query(ctx, Query{Collection: models.CollectionTrips, UserID: "u1"})
	assert.NoError(t, err, "unordered queries need no index")
	_, err = m.Query(ctx, Query{Collection: models.CollectionTrips, UserID: "u1", OrderByCreatedAt: true})
	assert.True(t, IsMissingIndex(err))
	assert.Equal(t, "https://help", IndexLink(err, ""))
}

// ── queries ─────────────────────────────────────────────────────────────────

func TestMemoryRemoteStore_Query(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRemoteStore("")

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	var ids []string
	for i := int64(1); i <= 4; i++ {
		id, err := m.Add(ctx, models.CollectionTrips, tripDoc("u1", i, "Lake"))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := m.Add(ctx, models.CollectionTrips, tripDoc("u2", 1, "Sea"))
	require.NoError(t, err)
	m.Seed(models.RemoteDocument{ID: "legacy", Collection: models.CollectionTrips, UserID: "u1", Data: tripDoc("u1", 99, "Old")})

	t.Run("owner scoping", func(t *testing.T) {
		docs, err := m.Query(ctx, Query{Collection: models.CollectionTrips, UserID: "u2"})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Sea", docs[0].Data["water"])
	})

	t.Run("filter matches numbers across types", func(t *testing.T) {
		docs, err := m.Query(ctx, Query{Collection: models.CollectionTrips, UserID: "u1"}.Where(models.FieldID, int64(3)))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, ids[2], docs[0].ID)

		docs, err = m.Query(ctx, Query{Collection: models.CollectionTrips, UserID: "u1"}.Where(models.FieldID, "3"))
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("ordered with cursor and limit", func(t *testing.T) {
		docs, err := m.Query(ctx, Query{Collection: models.CollectionTrips, UserID: "u1", OrderByCreatedAt: true, Limit: 3})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "legacy", docs[0].ID, "documents without createdAt sort first")
		assert.Equal(t, ids[0], docs[1].ID)
		assert.Equal(t, ids[1], docs[2].ID)

		cursor := *docs[2].CreatedAt
		docs, err = m.Query(ctx, Query{Collection: models.CollectionTrips, UserID: "u1", OrderByCreatedAt: true, CreatedAfter: &cursor})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, ids[2], docs[0].ID)
		assert.Equal(t, ids[3], docs[1].ID)
	})
}

func TestMemoryRemoteStore_Query_SharedCreatedAt(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRemoteStore("")

	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	later := at.Add(time.Second)
	for _, id := range []string{"a", "b", "c"} {
		m.Seed(models.RemoteDocument{ID: id, Collection: models.CollectionTrips, UserID: "u1", CreatedAt: &at, Data: tripDoc("u1", 1, "Lake")})
	}
	m.Seed(models.RemoteDocument{ID: "0", Collection: models.CollectionTrips, UserID: "u1", CreatedAt: &later, Data: tripDoc("u1", 2, "Lake")})

	tests := []struct {
		name    string
		afterID string
		want    []string
	}{
		{name: "time only skips the tie", want: []string{"0"}},
		{name: "pair keeps the rest of the tie", afterID: "a", want: []string{"b", "c", "0"}},
		{name: "pair at the end of the tie", afterID: "c", want: []string{"0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := m.Query(ctx, Query{
				Collection: models.CollectionTrips, UserID: "u1",
				OrderByCreatedAt: true, CreatedAfter: &at, CreatedAfterID: tt.afterID,
			})
			require.NoError(t, err)
			var got []string
			for _, d := range docs {
				got = append(got, d.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// ── batches ─────────────────────────────────────────────────────────────────

func TestMemoryRemoteStore_CommitBatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRemoteStore("")

	id, err := m.Add(ctx, models.CollectionTrips, tripDoc("u1", 1, "Lake"))
	require.NoError(t, err)

	t.Run("all or nothing", func(t *testing.T) {
		err := m.CommitBatch(ctx, []BatchOp{
			{Kind: BatchDelete, Collection: models.CollectionTrips, ID: id},
			{Kind: BatchUpdate, Collection: models.CollectionTrips, ID: "missing", Data: models.Document{"x": 1}},
		})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = m.Get(ctx, models.CollectionTrips, id)
		assert.NoError(t, err, "delete in failed batch must not apply")
	})

	t.Run("applies every op", func(t *testing.T) {
		err := m.CommitBatch(ctx, []BatchOp{
			{Kind: BatchUpdate, Collection: models.CollectionTrips, ID: id, Data: models.Document{"water": "enc:v1:a:b"}},
			{Kind: BatchSet, Collection: models.CollectionWeatherLogs, ID: "w1", Data: models.Document{models.FieldUserID: "u1"}},
		})
		require.NoError(t, err)

		doc, err := m.Get(ctx, models.CollectionTrips, id)
		require.NoError(t, err)
		assert.Equal(t, "enc:v1:a:b", doc.Data["water"])
		assert.Len(t, m.Documents(models.CollectionWeatherLogs), 1)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		before := m.Writes()
		require.NoError(t, m.CommitBatch(ctx, nil))
		assert.Equal(t, before, m.Writes())
	})
}
