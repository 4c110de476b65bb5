package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/morningai/morningai/internal/audit"
	"github.com/morningai/morningai/internal/users"
)

// OTPRequest carries a 6-digit TOTP code
type OTPRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// @Summary Start 2FA enrollment
// @Description Generates (or reuses) a TOTP secret and returns its provisioning URI and QR code
// @Tags 2fa
// @Produce json
// @Security BearerAuth
// @Success 200 {object} twofactor.Enrollment
// @Failure 400 {object} map[string]interface{}
// @Router /api/auth/2fa/setup [post]
func (s *Server) setupTwoFactor(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	if user.TwoFactorEnabled {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Two-factor authentication is already enabled"})
		return
	}

	enrollment, err := s.users.SetupTwoFactor(c.Request.Context(), user.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to set up 2FA")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to set up two-factor authentication"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scan the QR code with your authenticator app, then confirm with a code",
		"secret":  enrollment.Secret,
		"uri":     enrollment.URI,
		"qr_code": enrollment.QRCode,
	})
}

// @Summary Enable 2FA
// @Tags 2fa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body OTPRequest true "Current code"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/auth/2fa/enable [post]
func (s *Server) enableTwoFactor(c *gin.Context) {
	var req OTPRequest
	if !s.bindJSON(c, &req) {
		return
	}
	user, ok := s.currentUser(c)
	if !ok {
		return
	}

	switch {
	case user.TwoFactorEnabled:
		c.JSON(http.StatusBadRequest, gin.H{"message": "Two-factor authentication is already enabled"})
		return
	case user.TwoFactorSecret == "":
		c.JSON(http.StatusBadRequest, gin.H{"message": "Run two-factor setup first"})
		return
	}

	if err := s.users.EnableTwoFactor(c.Request.Context(), user.ID, req.OTP); err != nil {
		s.respondTwoFactorError(c, err)
		return
	}

	s.audit.Record(c.Request.Context(), s.auditEntry(c, audit.ActionTwoFactorEnable, user.ID))
	c.JSON(http.StatusOK, gin.H{"message": "Two-factor authentication enabled"})
}

// @Summary Disable 2FA
// @Tags 2fa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body OTPRequest true "Current code"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/auth/2fa/disable [post]
func (s *Server) disableTwoFactor(c *gin.Context) {
	var req OTPRequest
	if !s.bindJSON(c, &req) {
		return
	}
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	if !user.TwoFactorEnabled {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Two-factor authentication is not enabled"})
		return
	}

	if err := s.users.DisableTwoFactor(c.Request.Context(), user.ID, req.OTP); err != nil {
		s.respondTwoFactorError(c, err)
		return
	}

	s.audit.Record(c.Request.Context(), s.auditEntry(c, audit.ActionTwoFactorDisable, user.ID))
	c.JSON(http.StatusOK, gin.H{"message": "Two-factor authentication disabled"})
}

// @Summary 2FA status
// @Tags 2fa
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/2fa/status [get]
func (s *Server) twoFactorStatus(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"two_factor_enabled": user.TwoFactorEnabled,
		"has_secret":         user.TwoFactorSecret != "",
	})
}

func (s *Server) respondTwoFactorError(c *gin.Context, err error) {
	if errors.Is(err, users.ErrInvalidOTP) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid OTP"})
		return
	}
	s.logger.Error().Err(err).Msg("Failed to update 2FA")
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
}
