// Package audit records security-relevant actions.
package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mssola/useragent"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/morningai/morningai/internal/models"
)

// Actions
const (
	ActionRegister         = "register"
	ActionLogin            = "login"
	ActionLogout           = "logout"
	ActionLogoutAll        = "logout_all"
	ActionProfileUpdate    = "profile_update"
	ActionTwoFactorEnable  = "2fa_enable"
	ActionTwoFactorDisable = "2fa_disable"
	ActionRoleChange       = "role_change"
	ActionStatusChange     = "status_change"
	ActionBlacklistCleanup = "blacklist_cleanup"
	ActionDecisionCreate   = "decision_create"
	ActionDecisionApprove  = "decision_approve"
	ActionDecisionReject   = "decision_reject"
	ActionVerificationSent = "email_verification_sent"
	ActionEmailVerified    = "email_verified"
	ActionTokenRevoke      = "token_revoke"
	ActionAuditCleanup     = "audit_log_cleanup"
	ActionAuditExport      = "audit_log_export"
)

const (
	// MinRetentionDays is the shortest history Cleanup may keep
	MinRetentionDays = 30
	// ExportLimit caps one export
	ExportLimit = 10000
)

var ErrRetentionTooShort = fmt.Errorf("audit logs must be kept at least %d days", MinRetentionDays)

// Entry is one action to record
type Entry struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Details      string
	IPAddress    string
	UserAgent    string
	Status       string
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Action  string
	UserID  string
	Status  string
	Since   *time.Time
	Until   *time.Time
	Page    int
	PerPage int
}

func (f Filter) apply(query *gorm.DB) *gorm.DB {
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Since != nil {
		query = query.Where("created_at >= ?", f.Since.UTC())
	}
	if f.Until != nil {
		query = query.Where("created_at <= ?", f.Until.UTC())
	}
	return query
}

// Page is one page of audit entries
type Page struct {
	Items   []models.AuditLog
	Total   int64
	Pages   int
	Page    int
	PerPage int
}

// Service writes and reads the audit log
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates an audit service
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{db: db, logger: logger, now: time.Now}
}

// Record stores an entry. Failures are logged and never surface to the caller.
func (s *Service) Record(ctx context.Context, e Entry) {
	status := e.Status
	if status == "" {
		status = models.AuditSuccess
	}

	row := models.AuditLog{
		BaseModel:    models.BaseModel{CreatedAt: s.now().UTC()},
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      e.Details,
		IPAddress:    e.IPAddress,
		UserAgent:    truncate(e.UserAgent, 500),
		Device:       DeviceLabel(e.UserAgent),
		Status:       status,
	}
	if e.UserID != "" {
		userID := e.UserID
		row.UserID = &userID
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Error().Err(err).Str("action", e.Action).Msg("Failed to write audit log")
	}
}

// List returns audit entries, newest first
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	page, perPage := models.NormalizePage(f.Page, f.PerPage)

	query := f.apply(s.db.WithContext(ctx).Model(&models.AuditLog{}))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}

	var items []models.AuditLog
	if err := query.Order("created_at DESC").Scopes(models.Paginate(page, perPage)).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return &Page{Items: items, Total: total, Pages: pages, Page: page, PerPage: perPage}, nil
}

// ActionCount is the number of entries for one action
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// StatusCount is the number of entries with one status
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// Stats summarizes the last PeriodDays of the log
type Stats struct {
	PeriodDays  int           `json:"period_days"`
	TotalLogs   int64         `json:"total_logs"`
	FailedLogs  int64         `json:"failed_logs"`
	SuccessRate float64       `json:"success_rate"`
	ActiveUsers int64         `json:"active_users"`
	ActionStats []ActionCount `json:"action_stats"`
	StatusStats []StatusCount `json:"status_stats"`
}

// Stats counts entries of the last days days. SuccessRate is a percentage
// rounded to two places, 100 when there are no entries.
func (s *Service) Stats(ctx context.Context, days int) (*Stats, error) {
	since := s.now().UTC().AddDate(0, 0, -days)
	window := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("created_at >= ?", since)
	}

	stats := &Stats{PeriodDays: days, SuccessRate: 100, ActionStats: []ActionCount{}, StatusStats: []StatusCount{}}
	if err := window().Count(&stats.TotalLogs).Error; err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}
	if err := window().Where("status IN ?", []string{models.AuditFailed, models.AuditError}).Count(&stats.FailedLogs).Error; err != nil {
		return nil, fmt.Errorf("failed to count failed audit logs: %w", err)
	}
	if err := window().Where("user_id IS NOT NULL").Distinct("user_id").Count(&stats.ActiveUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}
	if err := window().Select("action, COUNT(*) AS count").Group("action").Order("count DESC, action").Scan(&stats.ActionStats).Error; err != nil {
		return nil, fmt.Errorf("failed to group audit logs by action: %w", err)
	}
	if err := window().Select("status, COUNT(*) AS count").Group("status").Order("count DESC, status").Scan(&stats.StatusStats).Error; err != nil {
		return nil, fmt.Errorf("failed to group audit logs by status: %w", err)
	}

	if stats.TotalLogs > 0 {
		rate := float64(stats.TotalLogs-stats.FailedLogs) / float64(stats.TotalLogs) * 100
		stats.SuccessRate = math.Round(rate*100) / 100
	}
	return stats, nil
}

// Cleanup deletes entries older than retentionDays and returns how many
func (s *Service) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < MinRetentionDays {
		return 0, ErrRetentionTooShort
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up audit logs: %w", result.Error)
	}
	s.logger.Info().Int64("cleaned", result.RowsAffected).Int("retention_days", retentionDays).Msg("Cleaned up audit logs")
	return result.RowsAffected, nil
}

// Export returns up to ExportLimit entries matching f, newest first.
// Paging fields of f are ignored.
func (s *Service) Export(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	var items []models.AuditLog
	query := f.apply(s.db.WithContext(ctx).Model(&models.AuditLog{}))
	if err := query.Order("created_at DESC").Limit(ExportLimit).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to export audit logs: %w", err)
	}
	return items, nil
}

// Usernames maps the user IDs referenced by items to usernames
func (s *Service) Usernames(ctx context.Context, items []models.AuditLog) (map[string]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, item := range items {
		if item.UserID != nil && !seen[*item.UserID] {
			seen[*item.UserID] = true
			ids = append(ids, *item.UserID)
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Select("id", "username").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load usernames: %w", err)
	}
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

var csvHeader = []string{
	"ID", "User ID", "Username", "Action", "Resource Type", "Resource ID",
	"Status", "IP Address", "Device", "Created At", "Details",
}

// WriteCSV writes items with a header row. usernames may be nil.
func WriteCSV(w io.Writer, items []models.AuditLog, usernames map[string]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, item := range items {
		var userID, username string
		if item.UserID != nil {
			userID = *item.UserID
			username = usernames[userID]
		}
		if err := cw.Write([]string{
			item.ID, userID, username, item.Action, item.ResourceType, item.ResourceID,
			item.Status, item.IPAddress, item.Device, item.CreatedAt.UTC().Format(time.RFC3339), item.Details,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DeviceLabel reduces a User-Agent to "Browser on OS"
func DeviceLabel(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
