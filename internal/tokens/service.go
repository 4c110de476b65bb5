// Package tokens maintains the access token blacklist.
//
// The database is the source of truth. When a Cache is configured, revoked JTIs
// are also written there with a TTL matching the token's remaining lifetime so
// the per-request check rarely touches the database.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/morningai/morningai/internal/models"
)

// Cache is a fast-path store of revoked JTIs
type Cache interface {
	Mark(ctx context.Context, jti string, ttl time.Duration) error
	IsMarked(ctx context.Context, jti string) (bool, error)
}

// Entry is a blacklist row joined with the owner's username
type Entry struct {
	ID            string    `json:"id"`
	JTI           string    `json:"jti"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	TokenType     string    `json:"token_type"`
	ExpiresAt     time.Time `json:"expires_at"`
	BlacklistedAt time.Time `json:"blacklisted_at"`
	Reason        string    `json:"reason"`
}

// Page is one page of blacklist entries
type Page struct {
	Items   []Entry
	Total   int64
	Pages   int
	Page    int
	PerPage int
}

// Service manages revoked tokens
type Service struct {
	db     *gorm.DB
	cache  Cache
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a blacklist service. cache may be nil.
func NewService(db *gorm.DB, cache Cache, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Add revokes a token until expiresAt. Adding the same JTI twice is a no-op.
func (s *Service) Add(ctx context.Context, jti, userID string, expiresAt time.Time, reason string) error {
	if jti == "" {
		return errors.New("token has no jti")
	}

	entry := models.BlacklistedToken{
		JTI:       jti,
		UserID:    userID,
		TokenType: "access",
		ExpiresAt: expiresAt,
		Reason:    reason,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	if s.cache != nil {
		if ttl := expiresAt.Sub(s.now()); ttl > 0 {
			if err := s.cache.Mark(ctx, jti, ttl); err != nil {
				s.logger.Warn().Err(err).Str("jti", jti).Msg("Failed to cache blacklisted token")
			}
		}
	}

	s.logger.Info().Str("jti", jti).Str("user_id", userID).Str("reason", reason).Msg("Token blacklisted")
	return nil
}

// IsBlacklisted reports whether the JTI is revoked and not yet expired
func (s *Service) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}

	if s.cache != nil {
		marked, err := s.cache.IsMarked(ctx, jti)
		if err == nil && marked {
			return true, nil
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("Blacklist cache lookup failed, falling back to database")
		}
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.BlacklistedToken{}).
		Where("jti = ? AND expires_at > ?", jti, s.now()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return count > 0, nil
}

// Cleanup deletes entries whose tokens have expired and returns how many went
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now()).
		Delete(&models.BlacklistedToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up blacklist: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.Info().Int64("cleaned_count", result.RowsAffected).Msg("Expired blacklist entries removed")
	}
	return result.RowsAffected, nil
}

// List returns blacklist entries, newest first
func (s *Service) List(ctx context.Context, page, perPage int) (*Page, error) {
	page, perPage = models.NormalizePage(page, perPage)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.BlacklistedToken{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count blacklist: %w", err)
	}

	var rows []models.BlacklistedToken
	err := s.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Scopes(models.Paginate(page, perPage)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklist: %w", err)
	}

	items := make([]Entry, len(rows))
	for i, row := range rows {
		items[i] = Entry{
			ID:            row.ID,
			JTI:           row.JTI,
			UserID:        row.UserID,
			TokenType:     row.TokenType,
			ExpiresAt:     row.ExpiresAt,
			BlacklistedAt: row.CreatedAt,
			Reason:        row.Reason,
		}
		if row.User != nil {
			items[i].Username = row.User.Username
		}
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return &Page{Items: items, Total: total, Pages: pages, Page: page, PerPage: perPage}, nil
}
