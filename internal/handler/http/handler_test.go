package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/config"
	"github.com/MKhiriev/go-fish-log/internal/events"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/service"
	"github.com/MKhiriev/go-fish-log/internal/store"
	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSignKey = "test-sign-key"
	testIssuer  = "fishlog-test"
	testUser    = "user-1"
	testEmail   = "angler@example.com"
)

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

// testEnv is the API wired to an in-memory sync core.
type testEnv struct {
	h      *Handler
	router http.Handler
	svcs   *service.Services
	remote *adapter.MemoryRemoteStore
}

func testConfig() *config.ClientConfig {
	return &config.ClientConfig{
		App: config.ClientApp{
			Pepper:       "test-pepper",
			KDF:          config.KDFSHA256,
			TokenSignKey: testSignKey,
			TokenIssuer:  testIssuer,
			Version:      "1.2.3",
		},
		Workers: config.ClientWorkers{MergeChunkSize: 10, OrphanCeiling: 10},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg *config.ClientConfig) *testEnv {
	t.Helper()

	remote := adapter.NewMemoryRemoteStore("")
	svcs, err := service.NewServices(store.NewMemoryStorages(), &adapter.Adapters{
		Remote: remote,
		Blobs:  adapter.NewMemoryBlobStore(),
	}, events.NewBus(), cfg)
	require.NoError(t, err)
	t.Cleanup(svcs.Close)

	h := NewHandler(svcs, cfg, logger.Nop())
	return &testEnv{h: h, router: h.Init(), svcs: svcs, remote: remote}
}

// bearer returns a valid Authorization header value for userID.
func bearer(t *testing.T, userID, email string) string {
	t.Helper()
	_, signed, err := utils.GenerateJWTToken(testIssuer, userID, email, time.Hour, testSignKey)
	require.NoError(t, err)
	return "Bearer " + signed
}

// do sends a request through the full router. body may be nil, a string
// (sent as is) or any value to be encoded as JSON.
func (e *testEnv) do(t *testing.T, method, path string, body any, authHeader ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		buf := &bytes.Buffer{}
		require.NoError(t, json.NewEncoder(buf).Encode(b))
		reader = buf
	}

	req := httptest.NewRequest(method, path, reader)
	if len(authHeader) > 0 {
		req.Header.Set("Authorization", authHeader[0])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// signInOnline signs testUser in and reports the process online.
func (e *testEnv) signInOnline(t *testing.T) {
	t.Helper()
	rec := e.do(t, http.MethodPut, "/api/connectivity?wait=true", map[string]bool{"online": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodPost, "/api/session", nil, bearer(t, testUser, testEmail))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// ─────────────────────────────────────────────
// version
// ─────────────────────────────────────────────

func TestGetVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{name: "configured", version: "1.2.3", want: "1.2.3"},
		{name: "empty falls back", version: "", want: "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.App.Version = tt.version
			env := newTestEnvWithConfig(t, cfg)

			rec := env.do(t, http.MethodGet, "/api/version", nil)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

// ─────────────────────────────────────────────
// session
// ─────────────────────────────────────────────

func TestSession_GuestByDefault(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/session", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[sessionResponse](t, rec)
	assert.Equal(t, "guest", got.State)
	assert.Empty(t, got.UserID)
	assert.False(t, got.Online)
}

func TestSignIn_TokenRequired(t *testing.T) {
	_, expired, err := utils.GenerateJWTToken(testIssuer, testUser, testEmail, -time.Minute, testSignKey)
	require.NoError(t, err)
	_, foreign, err := utils.GenerateJWTToken("someone-else", testUser, testEmail, time.Hour, testSignKey)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header"},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "expired token", header: "Bearer " + expired},
		{name: "wrong issuer", header: "Bearer " + foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			var rec *httptest.ResponseRecorder
			if tt.header == "" {
				rec = env.do(t, http.MethodPost, "/api/session", nil)
			} else {
				rec = env.do(t, http.MethodPost, "/api/session", nil, tt.header)
			}

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, service.Guest, env.svcs.DataService.Session().State)
		})
	}
}

func TestSignIn_SignOut(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/session", nil, bearer(t, testUser, testEmail))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[signInResponse](t, rec)
	assert.Equal(t, "authenticated", got.Session.State)
	assert.Equal(t, testUser, got.Session.UserID)
	assert.Equal(t, testEmail, got.Session.Email)
	assert.Nil(t, got.Merge)
	assert.True(t, env.svcs.Engine.IsReady())

	rec = env.do(t, http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, service.Guest, env.svcs.DataService.Session().State)
	assert.False(t, env.svcs.Engine.IsReady())
}

func TestSignIn_MergeOffline_ReportsMergeError(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/session", map[string]bool{"merge": true}, bearer(t, testUser, testEmail))

	// вход успешен, слияние не удалось: оффлайн
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[signInResponse](t, rec)
	assert.Equal(t, "authenticated", got.Session.State)
	assert.Nil(t, got.Merge)
	assert.Contains(t, got.MergeError, service.ErrOffline.Error())
}

func TestSignIn_MergeUploadsGuestTrips(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/trips", sampleTripBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/connectivity", map[string]bool{"online": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/session", map[string]bool{"merge": true}, bearer(t, testUser, testEmail))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[signInResponse](t, rec)
	require.NotNil(t, got.Merge)
	assert.Empty(t, got.MergeError)
	assert.Equal(t, 1, got.Merge.Trips.Created)
}

func TestSignIn_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/session", `{bad json}`, bearer(t, testUser, testEmail))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.Guest, env.svcs.DataService.Session().State)
}

// ─────────────────────────────────────────────
// connectivity
// ─────────────────────────────────────────────

func TestSetConnectivity(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantOnline bool
		wantDrain  bool
	}{
		{name: "online", path: "/api/connectivity", body: map[string]bool{"online": true}, wantStatus: http.StatusOK, wantOnline: true},
		{name: "online and wait", path: "/api/connectivity?wait=true", body: map[string]bool{"online": true}, wantStatus: http.StatusOK, wantOnline: true, wantDrain: true},
		{name: "offline", path: "/api/connectivity", body: map[string]bool{"online": false}, wantStatus: http.StatusOK},
		{name: "missing flag", path: "/api/connectivity", body: map[string]string{}, wantStatus: http.StatusBadRequest},
		{name: "invalid json", path: "/api/connectivity", body: `{oops`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rec := env.do(t, http.MethodPut, tt.path, tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, service.Offline, env.svcs.DataService.Connectivity())
				return
			}
			got := decode[connectivityResponse](t, rec)
			assert.Equal(t, tt.wantOnline, got.Online)
			assert.Equal(t, tt.wantDrain, got.Drain != nil)
			assert.Equal(t, tt.wantOnline, env.svcs.DataService.Connectivity() == service.Online)
		})
	}
}
