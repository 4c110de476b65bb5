package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/morningai/morningai/internal/audit"
	"github.com/morningai/morningai/internal/models"
	"github.com/morningai/morningai/internal/users"
)

// UpdateRoleRequest changes a user's role
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,morningai_role"`
}

// UpdateStatusRequest activates or deactivates a user
type UpdateStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return fallback
}

func (s *Server) respondUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	case errors.Is(err, users.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"message": `Invalid role. Must be "admin" or "user"`})
	case errors.Is(err, users.ErrSelfDemotion):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot remove your own admin role"})
	case errors.Is(err, users.ErrSelfDeactivation):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot deactivate your own account"})
	default:
		s.logger.Error().Err(err).Msg("User update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

// @Summary List users
// @Description List all users (admin only)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/admin/users [get]
func (s *Server) listUsers(c *gin.Context) {
	list, err := s.users.List(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list, "total": len(list)})
}

// @Summary Get user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/admin/users/{id} [get]
func (s *Server) getUser(c *gin.Context) {
	user, err := s.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, UserResponse{User: user})
}

// @Summary Change a user's role
// @Description Admins cannot demote themselves
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body UpdateRoleRequest true "New role"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/admin/users/{id}/role [put]
func (s *Server) updateUserRole(c *gin.Context) {
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": `Invalid role. Must be "admin" or "user"`})
		return
	}

	sessionData, _ := GetSessionData(c)
	user, err := s.users.UpdateRole(c.Request.Context(), sessionData.UserID, c.Param("id"), req.Role)
	if err != nil {
		s.respondUserError(c, err)
		return
	}

	entry := s.auditEntry(c, audit.ActionRoleChange, sessionData.UserID)
	entry.ResourceType, entry.ResourceID, entry.Details = "user", user.ID, "role="+req.Role
	s.audit.Record(c.Request.Context(), entry)

	c.JSON(http.StatusOK, UserResponse{Message: "User role updated", User: user})
}

// @Summary Activate or deactivate a user
// @Description Admins cannot deactivate themselves
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/admin/users/{id}/status [put]
func (s *Server) updateUserStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "is_active field is required"})
		return
	}

	sessionData, _ := GetSessionData(c)
	user, err := s.users.UpdateStatus(c.Request.Context(), sessionData.UserID, c.Param("id"), *req.IsActive)
	if err != nil {
		s.respondUserError(c, err)
		return
	}

	entry := s.auditEntry(c, audit.ActionStatusChange, sessionData.UserID)
	entry.ResourceType, entry.ResourceID = "user", user.ID
	entry.Details = "is_active=" + strconv.FormatBool(*req.IsActive)
	s.audit.Record(c.Request.Context(), entry)

	c.JSON(http.StatusOK, UserResponse{Message: "User status updated", User: user})
}

// @Summary List blacklisted tokens
// @Description Removes expired entries, then returns one page of the blacklist
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (1-based)"
// @Param per_page query int false "Page size (max 100)"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/blacklist [get]
func (s *Server) listBlacklist(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := s.blacklist.Cleanup(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Blacklist cleanup before listing failed")
	}

	page, err := s.blacklist.List(ctx, queryInt(c, "page", 1), queryInt(c, "per_page", 20))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list blacklist")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"blacklist":    page.Items,
		"total":        page.Total,
		"pages":        page.Pages,
		"current_page": page.Page,
		"per_page":     page.PerPage,
	})
}

// @Summary Purge expired blacklist entries
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/blacklist/cleanup [post]
func (s *Server) cleanupBlacklist(c *gin.Context) {
	cleaned, err := s.blacklist.Cleanup(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to clean up blacklist")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	sessionData, _ := GetSessionData(c)
	entry := s.auditEntry(c, audit.ActionBlacklistCleanup, sessionData.UserID)
	entry.Details = "cleaned=" + strconv.FormatInt(cleaned, 10)
	s.audit.Record(c.Request.Context(), entry)

	c.JSON(http.StatusOK, gin.H{
		"message":       "Expired tokens cleaned up",
		"cleaned_count": cleaned,
	})
}

// @Summary List audit log entries
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (1-based)"
// @Param per_page query int false "Page size (max 100)"
// @Param action query string false "Filter by action"
// @Param user_id query string false "Filter by user"
// @Param status query string false "Filter by status"
// @Param start_date query string false "Earliest entry (RFC3339 or YYYY-MM-DD)"
// @Param end_date query string false "Latest entry (RFC3339 or YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/audit-logs [get]
func (s *Server) listAuditLogs(c *gin.Context) {
	status := c.Query("status")
	if status != "" && status != models.AuditSuccess && status != models.AuditFailed && status != models.AuditError {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status filter"})
		return
	}

	since, until, ok := dateRange(c, c.Query("start_date"), c.Query("end_date"))
	if !ok {
		return
	}

	page, err := s.audit.List(c.Request.Context(), audit.Filter{
		Action:  c.Query("action"),
		UserID:  c.Query("user_id"),
		Status:  status,
		Since:   since,
		Until:   until,
		Page:    queryInt(c, "page", 1),
		PerPage: queryInt(c, "per_page", 20),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list audit logs")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	s.respondAuditPage(c, page)
}
