package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRoutes_ForbiddenForUsers(t *testing.T) {
	s := newTestServer(t)
	registerAndLogin(t, s, "alice")
	userToken, _ := registerAndLogin(t, s, "bob")

	for _, path := range []string{"/api/admin/users", "/api/admin/blacklist", "/api/admin/audit-logs"} {
		rec := doJSON(t, s, http.MethodGet, path, userToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, "Admin access required", decode(t, rec)["message"])
	}
}

func TestAdminUsers(t *testing.T) {
	s := newTestServer(t)
	adminToken, adminID := registerAndLogin(t, s, "alice")
	userToken, userID := registerAndLogin(t, s, "bob")

	rec := doJSON(t, s, http.MethodGet, "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["total"])

	rec = doJSON(t, s, http.MethodGet, "/api/admin/users/missing", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPut, "/api/admin/users/"+userID+"/role", adminToken, map[string]string{"role": "root"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPut, "/api/admin/users/"+adminID+"/role", adminToken, map[string]string{"role": "user"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot remove your own admin role", decode(t, rec)["message"])

	rec = doJSON(t, s, http.MethodPut, "/api/admin/users/"+userID+"/role", adminToken, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decode(t, rec)["user"].(map[string]any)["role"])

	// Promotion applies to tokens already issued
	rec = doJSON(t, s, http.MethodGet, "/api/admin/users", userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPut, "/api/admin/users/"+userID+"/status", adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is_active field is required", decode(t, rec)["message"])

	rec = doJSON(t, s, http.MethodPut, "/api/admin/users/"+adminID+"/status", adminToken, map[string]bool{"is_active": false})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot deactivate your own account", decode(t, rec)["message"])
}

func TestAdminBlacklist(t *testing.T) {
	s := newTestServer(t)
	adminToken, adminID := registerAndLogin(t, s, "alice")
	userToken, _ := registerAndLogin(t, s, "bob")

	require.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, "/api/auth/logout", userToken, nil).Code)
	require.NoError(t, s.blacklist.Add(context.Background(), "expired-jti", adminID, time.Now().Add(-time.Minute), "logout"))

	rec := doJSON(t, s, http.MethodPost, "/api/admin/blacklist/cleanup", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["cleaned_count"])

	rec = doJSON(t, s, http.MethodGet, "/api/admin/blacklist?page=1&per_page=10", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 1.0, body["total"])
	assert.Equal(t, 1.0, body["pages"])
	assert.Equal(t, 1.0, body["current_page"])
	assert.Equal(t, 10.0, body["per_page"])
	entries := body["blacklist"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].(map[string]any)["username"])
	assert.Equal(t, "logout", entries[0].(map[string]any)["reason"])
}

func TestAdminAuditLogs(t *testing.T) {
	s := newTestServer(t)
	adminToken, _ := registerAndLogin(t, s, "alice")

	rec := doJSON(t, s, http.MethodGet, "/api/admin/audit-logs?action=login", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 1.0, body["total"])
	logs := body["logs"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, "login", logs[0].(map[string]any)["action"])

	rec = doJSON(t, s, http.MethodGet, "/api/admin/audit-logs?status=weird", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
