package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Decision priorities
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Decision statuses
const (
	DecisionPending      = "pending"
	DecisionApproved     = "approved"
	DecisionRejected     = "rejected"
	DecisionAutoApproved = "auto_approved"
)

// Audit statuses
const (
	AuditSuccess = "success"
	AuditFailed  = "failed"
	AuditError   = "error"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Config is a singleton row holding server-generated secrets
type Config struct {
	BaseModel
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"` // Generated on first boot when JWT_SECRET is unset
}

// User represents an operator account
type User struct {
	BaseModel
	Username        string `json:"username" gorm:"unique;not null"`
	Email           string `json:"email" gorm:"unique;not null"`
	PasswordHash    string `json:"-" gorm:"not null"`
	Role            string `json:"role" gorm:"not null;default:user"`
	IsActive        bool   `json:"is_active" gorm:"not null;default:true"`
	IsEmailVerified bool   `json:"is_email_verified" gorm:"not null;default:false"`

	TwoFactorSecret  string `json:"-"`
	TwoFactorEnabled bool   `json:"two_factor_enabled" gorm:"not null;default:false"`

	// Tokens issued at or before this instant are rejected (logout-all)
	TokensValidSince *time.Time `json:"-"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// BlacklistedToken is a revoked access token, kept until its natural expiry
type BlacklistedToken struct {
	BaseModel
	JTI       string    `json:"jti" gorm:"uniqueIndex;type:varchar(36);not null"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	TokenType string    `json:"token_type" gorm:"not null;default:access"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	Reason    string    `json:"reason"`

	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// EmailVerification is an emailed link that confirms a user's address. Only
// the SHA-256 of the token is stored.
type EmailVerification struct {
	BaseModel
	UserID    string     `json:"user_id" gorm:"index;not null"`
	Email     string     `json:"email" gorm:"not null"`
	TokenHash string     `json:"-" gorm:"uniqueIndex;type:varchar(64);not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"index;not null"`
	UsedAt    *time.Time `json:"used_at"`

	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// AuditLog records a security-relevant action
type AuditLog struct {
	BaseModel
	UserID       *string `json:"user_id" gorm:"index"`
	Action       string  `json:"action" gorm:"index;not null"`
	ResourceType string  `json:"resource_type"`
	ResourceID   string  `json:"resource_id"`
	Details      string  `json:"details" gorm:"type:text"`
	IPAddress    string  `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent    string  `json:"user_agent" gorm:"type:varchar(500)"`
	Device       string  `json:"device"`
	Status       string  `json:"status" gorm:"index;not null;default:success"`
}

// Decision is an automated infrastructure action awaiting operator approval
type Decision struct {
	BaseModel
	Strategy            string  `json:"strategy" gorm:"not null"`
	StrategyDescription string  `json:"strategy_description" gorm:"type:text"`
	TriggerType         string  `json:"trigger_type" gorm:"not null"`
	TriggerValue        float64 `json:"trigger_value"`
	TriggerThreshold    float64 `json:"trigger_threshold"`
	PredictedImpact     string  `json:"predicted_impact" gorm:"type:text"`
	RiskAssessment      string  `json:"risk_assessment" gorm:"type:text"`
	Priority            string  `json:"priority" gorm:"not null;default:medium"`
	Status              string  `json:"status" gorm:"index;not null;default:pending"`

	AutoApproveAt *time.Time `json:"auto_approve_at"`
	ReviewedByID  *string    `json:"reviewed_by_id"`
	ReviewComment string     `json:"review_comment" gorm:"type:text"`
	ReviewedAt    *time.Time `json:"reviewed_at"`
}

// AutoApproveIn returns the remaining countdown, floored at zero
func (d *Decision) AutoApproveIn(now time.Time) time.Duration {
	if d.AutoApproveAt == nil || d.Status != DecisionPending {
		return 0
	}
	remaining := d.AutoApproveAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	// Collect all models
	models := []interface{}{
		&User{}, &Config{}, &BlacklistedToken{}, &EmailVerification{}, &AuditLog{}, &Decision{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// NormalizePage clamps 1-based pagination parameters
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// Paginate applies a 1-based page window to a query
func Paginate(page, perPage int) func(db *gorm.DB) *gorm.DB {
	page, perPage = NormalizePage(page, perPage)
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * perPage).Limit(perPage)
	}
}
