package http

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/MKhiriev/go-fish-log/internal/service"
	"github.com/MKhiriev/go-fish-log/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─────────────────────────────────────────────
// sync
// ─────────────────────────────────────────────

func TestSyncStatus(t *testing.T) {
	env := newTestEnv(t)
	env.signInOnline(t)

	rec := env.do(t, http.MethodGet, "/api/sync/status", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[service.SyncStatus](t, rec)
	assert.True(t, got.Online)
	assert.Equal(t, testUser, got.Session.UserID)
	assert.Zero(t, got.QueueSize)
}

func TestDrain_QueuedWhileOffline_ThenApplied(t *testing.T) {
	env := newTestEnv(t)
	env.signInOnline(t)

	rec := env.do(t, http.MethodPut, "/api/connectivity", map[string]bool{"online": false})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/trips", sampleTripBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "queued", decode[writeResponse[models.Trip]](t, rec).Outcome)

	rec = env.do(t, http.MethodGet, "/api/sync/status", nil)
	assert.Equal(t, 1, decode[service.SyncStatus](t, rec).QueueSize)

	// оффлайн: drain ничего не делает
	rec = env.do(t, http.MethodPost, "/api/sync/drain", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.DrainResult{Remaining: 1}, decode[service.DrainResult](t, rec))

	rec = env.do(t, http.MethodPut, "/api/connectivity?wait=true", map[string]bool{"online": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[connectivityResponse](t, rec)
	require.NotNil(t, got.Drain)
	assert.Equal(t, 1, got.Drain.Applied)
	assert.Zero(t, got.Drain.Remaining)
	assert.Len(t, env.remote.Documents(models.CollectionTrips), 1)
}

func TestDrain_Aggressive(t *testing.T) {
	tests := []struct {
		name       string
		signIn     bool
		wantStatus int
	}{
		{name: "guest", wantStatus: http.StatusUnauthorized},
		{name: "signed in", signIn: true, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.signIn {
				env.signInOnline(t)
			}

			rec := env.do(t, http.MethodPost, "/api/sync/drain?aggressive=true", nil)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

// ─────────────────────────────────────────────
// migration
// ─────────────────────────────────────────────

func TestMigration_Preconditions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/migration/run", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/migration", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// вошли, но оффлайн
	rec = env.do(t, http.MethodPost, "/api/session", nil, bearer(t, testUser, testEmail))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/migration/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMigration_RunWaitAndState(t *testing.T) {
	env := newTestEnv(t)
	env.signInOnline(t)

	env.remote.Seed(models.RemoteDocument{
		ID:         "legacy-1",
		Collection: models.CollectionTrips,
		UserID:     testUser,
		Data: models.Document{
			"id":     float64(1709280000000),
			"date":   "2024-03-01",
			"water":  "Lake X",
			"userId": testUser,
		},
	})

	rec := env.do(t, http.MethodPost, "/api/migration/run?wait=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[models.MigrationSummary](t, rec)
	assert.True(t, summary.Completed)
	assert.Equal(t, 1, summary.Updated)

	rec = env.do(t, http.MethodGet, "/api/migration", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[service.MigrationStatus](t, rec)
	assert.True(t, state.Completed)
	assert.False(t, state.Running)
	assert.Equal(t, 1, state.States[models.CollectionTrips].Processed)
}

func TestMigration_AbortAndReset(t *testing.T) {
	env := newTestEnv(t)
	env.signInOnline(t)

	rec := env.do(t, http.MethodPost, "/api/migration/abort", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/migration/reset", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "reset requires a token")

	rec = env.do(t, http.MethodPost, "/api/migration/reset", nil, bearer(t, testUser, testEmail))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// ─────────────────────────────────────────────
// wipe
// ─────────────────────────────────────────────

func TestWipe_Preconditions(t *testing.T) {
	tests := []struct {
		name       string
		signIn     bool
		tokenUser  string
		wantStatus int
	}{
		{name: "guest", tokenUser: testUser, wantStatus: http.StatusUnauthorized},
		{name: "other user", signIn: true, tokenUser: "user-2", wantStatus: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.signIn {
				env.signInOnline(t)
			}

			rec := env.do(t, http.MethodPost, "/api/wipe", nil, bearer(t, tt.tokenUser, testEmail))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotEqual(t, ndjsonContentType, rec.Header().Get("Content-Type"))
		})
	}
}

func TestWipe_StreamsProgress(t *testing.T) {
	env := newTestEnv(t)
	env.signInOnline(t)
	env.createTrip(t, sampleTripBody())
	require.Len(t, env.remote.Documents(models.CollectionTrips), 1)

	rec := env.do(t, http.MethodPost, "/api/wipe", nil, bearer(t, testUser, testEmail))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, ndjsonContentType, rec.Header().Get("Content-Type"))

	var progress []models.WipeProgress
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		var p models.WipeProgress
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &p), scanner.Text())
		progress = append(progress, p)
	}
	require.NotEmpty(t, progress)
	assert.Equal(t, service.WipePhaseDone, progress[len(progress)-1].Phase)
	assert.Empty(t, env.remote.Documents(models.CollectionTrips))
}
