package client

import "time"

// User is an account as returned by the API
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	IsActive         bool      `json:"is_active"`
	IsEmailVerified  bool      `json:"is_email_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role
func (u User) IsAdmin() bool {
	return u.Role == "admin"
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	OTP      string `json:"otp,omitempty" validate:"omitempty,len=6,numeric"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// RegisterRequest represents a self-service registration
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateProfileRequest carries optional profile changes
type UpdateProfileRequest struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8"`
}

// UserResponse wraps a single user
type UserResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// MessageResponse is the body of endpoints that only confirm an action
type MessageResponse struct {
	Message string `json:"message"`
}

// VerifyResponse is returned by the token verification endpoint
type VerifyResponse struct {
	Valid bool `json:"valid"`
	User  User `json:"user"`
}

// HealthResponse is the liveness probe body
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// TwoFactorSetup is the enrollment material for an authenticator app
type TwoFactorSetup struct {
	Message string `json:"message"`
	Secret  string `json:"secret"`
	URI     string `json:"uri"`
	QRCode  string `json:"qr_code"`
}

// TwoFactorStatus reports the caller's 2FA state
type TwoFactorStatus struct {
	Enabled   bool `json:"two_factor_enabled"`
	HasSecret bool `json:"has_secret"`
}

type otpRequest struct {
	OTP string `json:"otp" validate:"required,len=6,numeric"`
}

// SystemMetrics is the dashboard's metrics card data
type SystemMetrics struct {
	CPUCount         int       `json:"cpu_count"`
	CPUUsage         float64   `json:"cpu_usage"`
	Load1            float64   `json:"load_1"`
	Load5            float64   `json:"load_5"`
	Load15           float64   `json:"load_15"`
	MemoryTotalGB    float64   `json:"memory_total_gb"`
	MemoryUsedGB     float64   `json:"memory_used_gb"`
	MemoryUsage      float64   `json:"memory_usage"`
	DiskTotalGB      float64   `json:"disk_total_gb"`
	DiskUsedPercent  float64   `json:"disk_used_percent"`
	Goroutines       int       `json:"goroutines"`
	ResponseTimeMs   float64   `json:"response_time"`
	ErrorRate        float64   `json:"error_rate"`
	PendingApprovals int64     `json:"pending_approvals"`
	UptimeSeconds    int64     `json:"uptime_seconds"`
	Version          string    `json:"version"`
	Timestamp        time.Time `json:"timestamp"`
}

// Decision is an automated action awaiting (or past) review
type Decision struct {
	ID                   string     `json:"id"`
	Strategy             string     `json:"strategy"`
	StrategyDescription  string     `json:"strategy_description"`
	TriggerType          string     `json:"trigger_type"`
	TriggerValue         float64    `json:"trigger_value"`
	TriggerThreshold     float64    `json:"trigger_threshold"`
	PredictedImpact      string     `json:"predicted_impact"`
	RiskAssessment       string     `json:"risk_assessment"`
	Priority             string     `json:"priority"`
	Status               string     `json:"status"`
	AutoApproveAt        *time.Time `json:"auto_approve_at"`
	AutoApproveInSeconds int        `json:"auto_approve_in_seconds"`
	ReviewedByID         *string    `json:"reviewed_by_id"`
	ReviewComment        string     `json:"review_comment"`
	ReviewedAt           *time.Time `json:"reviewed_at"`
	CreatedAt            time.Time  `json:"created_at"`
}

// CreateDecisionRequest proposes an automated action for review
type CreateDecisionRequest struct {
	Strategy            string  `json:"strategy" validate:"required,max=200"`
	StrategyDescription string  `json:"strategy_description,omitempty"`
	TriggerType         string  `json:"trigger_type" validate:"required,max=100"`
	TriggerValue        float64 `json:"trigger_value"`
	TriggerThreshold    float64 `json:"trigger_threshold"`
	PredictedImpact     string  `json:"predicted_impact,omitempty"`
	RiskAssessment      string  `json:"risk_assessment,omitempty"`
	Priority            string  `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	AutoApproveSeconds  *int    `json:"auto_approve_seconds,omitempty" validate:"omitempty,min=0"`
}

type reviewRequest struct {
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

// DecisionResponse wraps a single decision
type DecisionResponse struct {
	Message  string   `json:"message"`
	Decision Decision `json:"decision"`
}

// BlacklistEntry is a revoked token
type BlacklistEntry struct {
	ID            string    `json:"id"`
	JTI           string    `json:"jti"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	TokenType     string    `json:"token_type"`
	ExpiresAt     time.Time `json:"expires_at"`
	BlacklistedAt time.Time `json:"blacklisted_at"`
	Reason        string    `json:"reason"`
}

// BlacklistPage is one page of revoked tokens
type BlacklistPage struct {
	Blacklist   []BlacklistEntry `json:"blacklist"`
	Total       int64            `json:"total"`
	Pages       int              `json:"pages"`
	CurrentPage int              `json:"current_page"`
	PerPage     int              `json:"per_page"`
}

// CleanupResponse reports how many expired entries were purged
type CleanupResponse struct {
	Message       string `json:"message"`
	CleanedCount  int64  `json:"cleaned_count"`
	RetentionDays int    `json:"retention_days,omitempty"`
}

// AuditLog is a recorded security-relevant action
type AuditLog struct {
	ID           string    `json:"id"`
	UserID       *string   `json:"user_id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	Device       string    `json:"device"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditFilter narrows an audit log listing
type AuditFilter struct {
	Action  string
	UserID  string
	Status  string `validate:"omitempty,oneof=success failed error"`
	// StartDate and EndDate take RFC3339 or YYYY-MM-DD
	StartDate string
	EndDate   string
	Page      int
	PerPage   int
}

// AuditPage is one page of audit log entries
type AuditPage struct {
	Logs        []AuditLog `json:"logs"`
	Total       int64      `json:"total"`
	Pages       int        `json:"pages"`
	CurrentPage int        `json:"current_page"`
	PerPage     int        `json:"per_page"`
}

// EmailStatus reports whether the caller's address is confirmed
type EmailStatus struct {
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
}

// VerificationSent is returned when a verification link is emailed
type VerificationSent struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RevokeTokenRequest blacklists a token
type RevokeTokenRequest struct {
	Token  string `json:"token" validate:"required"`
	Reason string `json:"reason,omitempty" validate:"max=100"`
}

// ActionCount is the number of entries for one action
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// StatusCount is the number of entries for one status
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// AuditStats summarizes the audit log over a window of days
type AuditStats struct {
	PeriodDays  int           `json:"period_days"`
	TotalLogs   int64         `json:"total_logs"`
	FailedLogs  int64         `json:"failed_logs"`
	SuccessRate float64       `json:"success_rate"`
	ActiveUsers int64         `json:"active_users"`
	ActionStats []ActionCount `json:"action_stats"`
	StatusStats []StatusCount `json:"status_stats"`
}

// ExportAuditLogsRequest selects entries to export
type ExportAuditLogsRequest struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Format    string `json:"format,omitempty" validate:"omitempty,oneof=json csv"`
}

// AuditExport carries exported entries. Logs is set for JSON, Content for CSV.
type AuditExport struct {
	Message string     `json:"message"`
	Format  string     `json:"format"`
	Logs    []AuditLog `json:"logs,omitempty"`
	Content string     `json:"content,omitempty"`
	Count   int        `json:"count"`
}
