package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/morningai/morningai/internal/audit"
	"github.com/morningai/morningai/internal/models"
	"github.com/morningai/morningai/internal/verification"
)

// @Summary Send verification email
// @Description Emails the caller a single-use link that confirms their address
// @Tags email
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/auth/send-verification [post]
func (s *Server) sendVerification(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	expiresAt, err := s.verify.Send(ctx, user)
	if err != nil {
		if errors.Is(err, verification.ErrAlreadyVerified) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Email is already verified."})
			return
		}
		entry := s.auditEntry(c, audit.ActionVerificationSent, user.ID)
		entry.Status = models.AuditError
		s.audit.Record(ctx, entry)

		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to send verification email")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to send verification email."})
		return
	}

	s.audit.Record(ctx, s.auditEntry(c, audit.ActionVerificationSent, user.ID))
	c.JSON(http.StatusOK, gin.H{"message": "Verification email sent.", "expires_at": expiresAt})
}

// @Summary Verify email
// @Description Consumes a verification link. The token comes from the path or the token query parameter.
// @Tags email
// @Produce json
// @Param token path string false "Verification token"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/auth/verify/{token} [get]
func (s *Server) verifyEmail(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing verification token"})
		return
	}

	ctx := c.Request.Context()
	user, err := s.verify.Confirm(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Verification token expired"})
		case errors.Is(err, verification.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid verification token"})
		case errors.Is(err, verification.ErrAlreadyVerified):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Email is already verified."})
		case errors.Is(err, verification.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found."})
		default:
			s.logger.Error().Err(err).Msg("Failed to verify email")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		}
		return
	}

	s.audit.Record(ctx, s.auditEntry(c, audit.ActionEmailVerified, user.ID))
	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully."})
}

// @Summary Email verification status
// @Tags email
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/email-status [get]
func (s *Server) emailStatus(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": user.Email, "is_verified": user.IsEmailVerified})
}
