package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/morningai/morningai/internal/auth"
	"github.com/morningai/morningai/internal/models"
	"github.com/morningai/morningai/internal/tokens"
)

const (
	bearerPrefix    = "Bearer "
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenRevoked      = errors.New("token revoked")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserInactive      = errors.New("user inactive")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok
}

var bearerErrorMessages = map[error]string{
	ErrMissingAuthHeader: "Missing authorization header",
	ErrInvalidAuthFormat: "Invalid authorization header format",
	ErrEmptyToken:        "Empty token",
}

// extractBearerToken accepts the scheme in any case, as RFC 6750 allows
func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	if len(authHeader) < len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).
		Str("path", c.Request.URL.Path).
		Str("request_id", c.GetString(requestIDKey)).
		Int("status", statusCode).
		Msg(message)
	c.AbortWithStatusJSON(statusCode, gin.H{"message": message})
}

// JWTAuthMiddleware validates bearer tokens and loads the caller's session.
// A token is rejected when it is malformed or expired, its JTI is blacklisted,
// its user is missing or disabled, or it was issued before the user's last logout-all.
func JWTAuthMiddleware(tm *auth.TokenManager, blacklist *tokens.Service, db *gorm.DB, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			respondWithError(c, log, http.StatusUnauthorized, err, bearerErrorMessages[err])
			return
		}

		claims, err := tm.ValidateToken(token)
		if err != nil {
			respondWithError(c, log, http.StatusUnauthorized, err, "Invalid or expired token")
			return
		}

		revoked, err := blacklist.IsBlacklisted(c.Request.Context(), claims.ID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to check token blacklist")
			respondWithError(c, log, http.StatusInternalServerError, err, "Internal server error")
			return
		}
		if revoked {
			respondWithError(c, log, http.StatusUnauthorized, ErrTokenRevoked, "Token has been revoked")
			return
		}

		var user models.User
		if err := models.FindByID(db.WithContext(c.Request.Context()), claims.UserID, &user); err != nil {
			respondWithError(c, log, http.StatusUnauthorized, ErrUserNotFound, "User not found")
			return
		}
		if !user.IsActive {
			respondWithError(c, log, http.StatusUnauthorized, ErrUserInactive, "Account is disabled")
			return
		}
		// iat has second precision, so a token issued in the same second as a
		// logout-all counts as revoked. Clients log in again a second later.
		if user.TokensValidSince != nil && claims.IssuedAt != nil && !claims.IssuedAt.After(*user.TokensValidSince) {
			respondWithError(c, log, http.StatusUnauthorized, ErrTokenRevoked, "Token has been revoked")
			return
		}

		sessionData := &auth.SessionData{
			UserID:   user.ID,
			Username: user.Username,
			Email:    user.Email,
			// Role comes from the database so role changes apply to live tokens
			Role:    user.Role,
			TokenID: claims.ID,
		}
		if claims.IssuedAt != nil {
			sessionData.IssuedAt = claims.IssuedAt.Time
		}
		if claims.ExpiresAt != nil {
			sessionData.ExpiresAt = claims.ExpiresAt.Time
		}
		setSession(c, sessionData)

		c.Next()
	}
}

// AdminOnlyMiddleware ensures the authenticated user is an admin
func AdminOnlyMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionData, exists := GetSessionData(c)
		if !exists {
			respondWithError(c, log, http.StatusUnauthorized, errors.New("no session"), "Unauthorized")
			return
		}

		if !sessionData.IsAdmin() {
			respondWithError(c, log, http.StatusForbidden, errors.New("not admin"), "Admin access required")
			return
		}

		c.Next()
	}
}

// requestMiddleware tags the request with an ID and writes one access log
// line after the handler, at warn for 4xx and error for 5xx.
func (s *Server) requestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := s.logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = s.logger.Error()
		case status >= http.StatusBadRequest:
			event = s.logger.Warn()
		}
		if session, ok := GetSessionData(c); ok {
			event = event.Str("user_id", session.UserID)
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Msg("HTTP request")
	}
}

// metricsMiddleware feeds Prometheus and the dashboard's request stats
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		s.metrics.ObserveRequest(c.Request.Method, route, strconv.Itoa(status), duration.Seconds())
		s.stats.observe(duration, status)
	}
}
