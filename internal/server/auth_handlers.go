package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/morningai/morningai/internal/audit"
	"github.com/morningai/morningai/internal/models"
	"github.com/morningai/morningai/internal/users"
)

// RegisterRequest represents a self-service registration
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	OTP      string `json:"otp"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

// UserResponse wraps a single user
type UserResponse struct {
	Message string       `json:"message,omitempty"`
	User    *models.User `json:"user"`
}

// RevokeTokenRequest names a token to blacklist
type RevokeTokenRequest struct {
	Token  string `json:"token" binding:"required"`
	Reason string `json:"reason" binding:"max=100"`
}

// UpdateProfileRequest carries optional profile changes
type UpdateProfileRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8"`
}

// auditEntry pre-fills request metadata for an audit record
func (s *Server) auditEntry(c *gin.Context, action, userID string) audit.Entry {
	return audit.Entry{
		UserID:    userID,
		Action:    action,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// currentUser loads the caller's user row, writing an error response on failure
func (s *Server) currentUser(c *gin.Context) (*models.User, bool) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return nil, false
	}

	user, err := s.users.Get(c.Request.Context(), sessionData.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return nil, false
		}
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return nil, false
	}
	return user, true
}

// @Summary Register
// @Description Creates an account. The first account becomes an admin.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration"
// @Success 201 {object} UserResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/register [post]
func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.users.Register(c.Request.Context(), users.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, users.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"message": "Username already exists"})
		case errors.Is(err, users.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"message": "Email already exists"})
		default:
			s.logger.Error().Err(err).Msg("Failed to register user")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create user"})
		}
		return
	}

	entry := s.auditEntry(c, audit.ActionRegister, user.ID)
	entry.ResourceType, entry.ResourceID = "user", user.ID
	s.audit.Record(c.Request.Context(), entry)

	c.JSON(http.StatusCreated, UserResponse{Message: "User created successfully", User: user})
}

// @Summary Login
// @Description Authenticate with email, password and, when enabled, a TOTP code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/login [post]
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if !s.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user, err := s.users.Authenticate(ctx, req.Email, req.Password, req.OTP)
	if err != nil {
		entry := s.auditEntry(c, audit.ActionLogin, "")
		if user != nil {
			entry.UserID = user.ID
		}
		entry.Status = models.AuditFailed

		switch {
		case errors.Is(err, users.ErrInvalidCredentials):
			entry.Details = "invalid credentials"
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
		case errors.Is(err, users.ErrInactive):
			entry.Details = "account disabled"
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Account is disabled"})
		case errors.Is(err, users.ErrTwoFactorRequired):
			entry.Details = "2fa code required"
			c.JSON(http.StatusUnauthorized, gin.H{
				"message":      "Two-factor authentication code required",
				"requires_2fa": true,
			})
		case errors.Is(err, users.ErrInvalidOTP):
			entry.Details = "invalid 2fa code"
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid two-factor authentication code"})
		default:
			entry.Status = models.AuditError
			s.logger.Error().Err(err).Msg("Failed to authenticate user")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		}

		s.metrics.LoginAttempts.WithLabelValues(entry.Status).Inc()
		s.audit.Record(ctx, entry)
		return
	}

	token, _, err := s.tokens.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to generate token"})
		return
	}

	s.metrics.LoginAttempts.WithLabelValues(models.AuditSuccess).Inc()
	s.audit.Record(ctx, s.auditEntry(c, audit.ActionLogin, user.ID))
	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User logged in")

	c.JSON(http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   token,
		User:    user,
	})
}

// @Summary Verify token
// @Description Confirms the bearer token is still accepted and returns its user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]interface{}
// @Router /api/verify [get]
func (s *Server) verifyToken(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "user": user})
}

// @Summary Get current user
// @Description Get information about the currently authenticated user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]interface{}
// @Router /api/profile [get]
func (s *Server) getProfile(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, UserResponse{User: user})
}

// @Summary Update profile
// @Description Changes the caller's email and/or password. A new email must be verified again.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile changes"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/profile [put]
func (s *Server) updateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !s.bindJSON(c, &req) {
		return
	}

	sessionData, _ := GetSessionData(c)
	user, err := s.users.UpdateProfile(c.Request.Context(), sessionData.UserID, users.ProfileUpdate{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, users.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"message": "Email already exists"})
		case errors.Is(err, users.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		default:
			s.logger.Error().Err(err).Msg("Failed to update profile")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update profile"})
		}
		return
	}

	s.audit.Record(c.Request.Context(), s.auditEntry(c, audit.ActionProfileUpdate, user.ID))
	c.JSON(http.StatusOK, UserResponse{Message: "Profile updated successfully", User: user})
}

// @Summary Logout
// @Description Revokes the presented token until it expires
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/logout [post]
func (s *Server) logout(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	ctx := c.Request.Context()

	if err := s.blacklist.Add(ctx, sessionData.TokenID, sessionData.UserID, sessionData.ExpiresAt, "logout"); err != nil {
		s.logger.Error().Err(err).Msg("Failed to blacklist token on logout")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to log out"})
		return
	}
	s.metrics.TokensRevoked.WithLabelValues("logout").Inc()

	s.audit.Record(ctx, s.auditEntry(c, audit.ActionLogout, sessionData.UserID))
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// @Summary Logout everywhere
// @Description Invalidates every token issued to the caller so far
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/logout-all [post]
func (s *Server) logoutAll(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	ctx := c.Request.Context()

	// Token iat has second precision
	cutoff := s.now().UTC().Truncate(time.Second)
	if err := s.users.InvalidateTokens(ctx, sessionData.UserID, cutoff); err != nil {
		s.logger.Error().Err(err).Msg("Failed to invalidate tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to log out"})
		return
	}
	if err := s.blacklist.Add(ctx, sessionData.TokenID, sessionData.UserID, sessionData.ExpiresAt, "logout_all"); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to blacklist current token on logout-all")
	}
	s.metrics.TokensRevoked.WithLabelValues("logout_all").Inc()

	s.audit.Record(ctx, s.auditEntry(c, audit.ActionLogoutAll, sessionData.UserID))
	c.JSON(http.StatusOK, gin.H{"message": "Logged out from all devices"})
}

// @Summary Revoke a token
// @Description Blacklists the given token until it expires. Users may revoke their own tokens, admins any token.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RevokeTokenRequest true "Token to revoke"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/auth/revoke-token [post]
func (s *Server) revokeToken(c *gin.Context) {
	var req RevokeTokenRequest
	if !s.bindJSON(c, &req) {
		return
	}

	claims, err := s.tokens.ValidateToken(req.Token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Token has already expired"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid token"})
		return
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid token"})
		return
	}

	sessionData, _ := GetSessionData(c)
	if claims.UserID != sessionData.UserID && !sessionData.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"message": "Not allowed to revoke this token"})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual_revoke"
	}

	ctx := c.Request.Context()
	if err := s.blacklist.Add(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time, reason); err != nil {
		s.logger.Error().Err(err).Msg("Failed to revoke token")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to revoke token"})
		return
	}
	s.metrics.TokensRevoked.WithLabelValues("revoke").Inc()

	entry := s.auditEntry(c, audit.ActionTokenRevoke, sessionData.UserID)
	entry.ResourceType, entry.ResourceID, entry.Details = "token", claims.ID, reason
	s.audit.Record(ctx, entry)

	c.JSON(http.StatusOK, gin.H{"message": "Token revoked"})
}
