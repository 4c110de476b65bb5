package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningai/morningai/internal/auth"
	"github.com/morningai/morningai/internal/models"
)

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "correct-horse", "role": "user",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, models.RoleAdmin, user["role"])
	assert.NotContains(t, user, "password_hash")

	rec = doJSON(t, s, http.MethodPost, "/api/register", "", map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "correct-horse", "role": "admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.RoleUser, decode(t, rec)["user"].(map[string]any)["role"])

	rec = doJSON(t, s, http.MethodPost, "/api/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Username already exists", decode(t, rec)["message"])
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/register", "", map[string]string{
		"username": "al", "email": "not-an-email", "password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Validation failed", body["message"])
	fields := body["errors"].(map[string]any)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	registerAndLogin(t, s, "alice")

	rec := doJSON(t, s, http.MethodPost, "/api/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", decode(t, rec)["message"])

	rec = doJSON(t, s, http.MethodPost, "/api/login", "", map[string]string{
		"email": "alice@example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "alice", body["user"].(map[string]any)["username"])
}

func TestProtectedRoutes_RequireBearer(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing authorization header", decode(t, rec)["message"])

	rec = doJSON(t, s, http.MethodGet, "/api/profile", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", decode(t, rec)["message"])
}

func TestProfileAndVerify(t *testing.T) {
	s := newTestServer(t)
	token, userID := registerAndLogin(t, s, "alice")

	rec := doJSON(t, s, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, decode(t, rec)["user"].(map[string]any)["id"])

	rec = doJSON(t, s, http.MethodGet, "/api/verify", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["valid"])

	rec = doJSON(t, s, http.MethodPut, "/api/profile", token, map[string]string{"email": "alice@new.example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "alice@new.example.com", user["email"])
	assert.Equal(t, false, user["is_email_verified"])

	registerAndLogin(t, s, "bob")
	rec = doJSON(t, s, http.MethodPut, "/api/profile", token, map[string]string{"email": "bob@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogout_RevokesToken(t *testing.T) {
	s := newTestServer(t)
	token, _ := registerAndLogin(t, s, "alice")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has been revoked", decode(t, rec)["message"])
}

func TestLogoutAll_RevokesEveryEarlierToken(t *testing.T) {
	s := newTestServer(t)
	first, _ := registerAndLogin(t, s, "alice")
	second := login(t, s, "alice")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/logout-all", first, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, token := range []string{first, second} {
		rec = doJSON(t, s, http.MethodGet, "/api/profile", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestLogoutAllCutoff_SameSecondIsRevoked(t *testing.T) {
	s := newTestServer(t)
	token, userID := registerAndLogin(t, s, "alice")

	claims, err := s.tokens.ValidateToken(token)
	require.NoError(t, err)
	issued := claims.IssuedAt.Time.UTC()

	require.NoError(t, s.users.InvalidateTokens(context.Background(), userID, issued.Add(-time.Second)))
	rec := doJSON(t, s, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, s.users.InvalidateTokens(context.Background(), userID, issued))
	rec = doJSON(t, s, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has been revoked", decode(t, rec)["message"])
}

func TestDeactivatedUserTokenRejected(t *testing.T) {
	s := newTestServer(t)
	adminToken, _ := registerAndLogin(t, s, "alice")
	userToken, userID := registerAndLogin(t, s, "bob")

	rec := doJSON(t, s, http.MethodPut, "/api/admin/users/"+userID+"/status", adminToken, map[string]bool{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/profile", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account is disabled", decode(t, rec)["message"])

	rec = doJSON(t, s, http.MethodPost, "/api/login", "", map[string]string{
		"email": "bob@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginIsAudited(t *testing.T) {
	s := newTestServer(t)
	registerAndLogin(t, s, "alice")
	doJSON(t, s, http.MethodPost, "/api/login", "", map[string]string{
		"email": "alice@example.com", "password": "nope-nope",
	})

	var logs []models.AuditLog
	require.NoError(t, s.db.Where("action = ?", "login").Order("id ASC").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditSuccess, logs[0].Status)
	assert.Equal(t, models.AuditFailed, logs[1].Status)
	assert.Contains(t, logs[1].Device, "Chrome")
}

func TestRevokeToken(t *testing.T) {
	s := newTestServer(t)
	adminToken, _ := registerAndLogin(t, s, "alice")
	bobToken, _ := registerAndLogin(t, s, "bob")
	bobSecond := login(t, s, "bob")
	carolToken, _ := registerAndLogin(t, s, "carol")

	// Users may only revoke their own tokens
	rec := doJSON(t, s, http.MethodPost, "/api/auth/revoke-token", carolToken, map[string]string{"token": bobToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/revoke-token", bobToken, map[string]string{"token": bobSecond})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Token revoked", decode(t, rec)["message"])

	rec = doJSON(t, s, http.MethodGet, "/api/profile", bobSecond, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, s, http.MethodGet, "/api/profile", bobToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/revoke-token", adminToken, map[string]string{
		"token": carolToken, "reason": "compromised",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var entry models.BlacklistedToken
	claims, err := s.tokens.ValidateToken(carolToken)
	require.NoError(t, err)
	require.NoError(t, s.db.Where("jti = ?", claims.ID).First(&entry).Error)
	assert.Equal(t, "compromised", entry.Reason)

	var audited int64
	s.db.Model(&models.AuditLog{}).Where("action = ?", "token_revoke").Count(&audited)
	assert.Equal(t, int64(2), audited)
}

func TestRevokeToken_Rejections(t *testing.T) {
	s := newTestServer(t)
	token, userID := registerAndLogin(t, s, "alice")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/revoke-token", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/revoke-token", token, map[string]string{"token": "garbage"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["message"])

	past := time.Now().Add(-2 * time.Hour)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.JWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "expired-jti",
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
		},
	}).SignedString([]byte(testConfig().Auth.JWTSecret))
	require.NoError(t, err)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/revoke-token", token, map[string]string{"token": expired})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Token has already expired", decode(t, rec)["message"])
}
