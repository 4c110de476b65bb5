package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningai/morningai/internal/config"
	"github.com/morningai/morningai/internal/database/dbtest"
	"github.com/morningai/morningai/internal/models"
	"github.com/morningai/morningai/internal/sysinfo"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", AllowedOrigins: []string{"http://localhost:5173"}},
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-that-is-long-enough",
			TokenExpiration: time.Hour,
			TOTPIssuer:      "MorningAI",
		},
		Decisions: config.DecisionsConfig{DefaultAutoApprove: 5 * time.Minute},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewWithDeps(testConfig(), zerolog.Nop(), "test", Deps{
		DB:      dbtest.New(t),
		SysInfo: sysinfo.NewReader(t.TempDir()),
	})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// registerAndLogin creates an account and returns a token and the user ID
func registerAndLogin(t *testing.T, s *Server, username string) (string, string) {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/api/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	userID := decode(t, rec)["user"].(map[string]any)["id"].(string)

	return login(t, s, username), userID
}

func login(t *testing.T, s *Server, username string) string {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/login", "", map[string]string{
		"email":    username + "@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["token"].(string)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "morningai-api", body["service"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestReadiness_DatabaseOnly(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/readiness", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ready", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["database"])
	assert.NotContains(t, checks, "redis")
}

func TestReadiness_DatabaseDown(t *testing.T) {
	s := newTestServer(t)
	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rec := doJSON(t, s, http.MethodGet, "/readiness", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", decode(t, rec)["status"])
}

func TestPrometheusEndpoint(t *testing.T) {
	s := newTestServer(t)
	doJSON(t, s, http.MethodGet, "/health", "", nil)

	rec := doJSON(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `morningai_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestResolveJWTSecret_GeneratedOnceAndPersisted(t *testing.T) {
	db := dbtest.New(t)

	first, err := resolveJWTSecret(db, "", zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := resolveJWTSecret(db, "", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var count int64
	db.Model(&models.Config{}).Count(&count)
	assert.Equal(t, int64(1), count)

	configured, err := resolveJWTSecret(db, "from-env", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "from-env", configured)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST"))
}
