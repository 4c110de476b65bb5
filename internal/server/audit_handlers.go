package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/morningai/morningai/internal/audit"
	"github.com/morningai/morningai/internal/models"
)

// CleanupAuditLogsRequest sets the retention window. Days defaults to 90.
type CleanupAuditLogsRequest struct {
	Days *int `json:"days"`
}

// ExportAuditLogsRequest selects entries to export
type ExportAuditLogsRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Format    string `json:"format"`
}

const defaultRetentionDays = 90

// parseDate accepts RFC3339 or a bare YYYY-MM-DD date. Empty input is nil.
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("invalid date")
}

// dateRange parses start and end, writing a 400 when either is malformed
func dateRange(c *gin.Context, start, end string) (since, until *time.Time, ok bool) {
	since, err := parseDate(start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid start_date format"})
		return nil, nil, false
	}
	until, err = parseDate(end)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid end_date format"})
		return nil, nil, false
	}
	return since, until, true
}

func (s *Server) respondAuditPage(c *gin.Context, page *audit.Page) {
	c.JSON(http.StatusOK, gin.H{
		"logs":         page.Items,
		"total":        page.Total,
		"pages":        page.Pages,
		"current_page": page.Page,
		"per_page":     page.PerPage,
	})
}

// @Summary List own audit logs
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Param action query string false "Action filter"
// @Success 200 {object} map[string]interface{}
// @Router /api/audit-logs/my [get]
func (s *Server) myAuditLogs(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	page, err := s.audit.List(c.Request.Context(), audit.Filter{
		Action:  c.Query("action"),
		UserID:  sessionData.UserID,
		Page:    queryInt(c, "page", 1),
		PerPage: queryInt(c, "per_page", 20),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list own audit logs")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	s.respondAuditPage(c, page)
}

// @Summary Audit log statistics
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param days query int false "Window in days (1-365, default 7)"
// @Success 200 {object} audit.Stats
// @Failure 400 {object} map[string]interface{}
// @Router /api/admin/audit-logs/stats [get]
func (s *Server) auditStats(c *gin.Context) {
	days := queryInt(c, "days", 7)
	if days < 1 || days > 365 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "days must be between 1 and 365"})
		return
	}

	stats, err := s.audit.Stats(c.Request.Context(), days)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute audit stats")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Delete old audit logs
// @Tags audit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CleanupAuditLogsRequest false "Retention window"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/admin/audit-logs/cleanup [post]
func (s *Server) cleanupAuditLogs(c *gin.Context) {
	var req CleanupAuditLogsRequest
	if c.Request.ContentLength != 0 && !s.bindJSON(c, &req) {
		return
	}
	days := defaultRetentionDays
	if req.Days != nil {
		days = *req.Days
	}

	ctx := c.Request.Context()
	cleaned, err := s.audit.Cleanup(ctx, days)
	if err != nil {
		if errors.Is(err, audit.ErrRetentionTooShort) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Retention period must be at least 30 days"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to clean up audit logs")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	sessionData, _ := GetSessionData(c)
	entry := s.auditEntry(c, audit.ActionAuditCleanup, sessionData.UserID)
	entry.ResourceType = "audit_logs"
	entry.Details = fmt.Sprintf("cleaned=%d retention_days=%d", cleaned, days)
	s.audit.Record(ctx, entry)

	c.JSON(http.StatusOK, gin.H{
		"message":        "Audit logs cleaned up",
		"cleaned_count":  cleaned,
		"retention_days": days,
	})
}

// @Summary Export audit logs
// @Description Exports up to 10000 entries as JSON or CSV
// @Tags audit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ExportAuditLogsRequest false "Export range and format"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/admin/audit-logs/export [post]
func (s *Server) exportAuditLogs(c *gin.Context) {
	var req ExportAuditLogsRequest
	if c.Request.ContentLength != 0 && !s.bindJSON(c, &req) {
		return
	}
	if req.Format == "" {
		req.Format = "json"
	}
	if req.Format != "json" && req.Format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"message": `Invalid format. Must be "json" or "csv"`})
		return
	}
	since, until, ok := dateRange(c, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	items, err := s.audit.Export(ctx, audit.Filter{Since: since, Until: until})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to export audit logs")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	sessionData, _ := GetSessionData(c)
	entry := s.auditEntry(c, audit.ActionAuditExport, sessionData.UserID)
	entry.ResourceType = "audit_logs"
	entry.Details = fmt.Sprintf("exported=%d format=%s", len(items), req.Format)
	defer func() { s.audit.Record(ctx, entry) }()

	if req.Format == "json" {
		c.JSON(http.StatusOK, gin.H{
			"message": "Audit logs exported",
			"format":  "json",
			"logs":    items,
			"count":   len(items),
		})
		return
	}

	usernames, err := s.audit.Usernames(ctx, items)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to resolve usernames for export")
	}
	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, items, usernames); err != nil {
		entry.Status = models.AuditError
		s.logger.Error().Err(err).Msg("Failed to write audit CSV")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Audit logs exported",
		"format":  "csv",
		"content": buf.String(),
		"count":   len(items),
	})
}
