// Package verification confirms that operators own their email address.
package verification

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/morningai/morningai/internal/mailer"
	"github.com/morningai/morningai/internal/models"
)

var (
	ErrAlreadyVerified = errors.New("email is already verified")
	ErrInvalidToken    = errors.New("invalid verification token")
	ErrTokenExpired    = errors.New("verification token expired")
	ErrUserNotFound    = errors.New("user not found")
)

const tokenBytes = 32

type Service struct {
	db      *gorm.DB
	mailer  mailer.Mailer
	baseURL string
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewService builds links as baseURL + "/api/auth/verify/<token>"
func NewService(db *gorm.DB, m mailer.Mailer, baseURL string, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{db: db, mailer: m, baseURL: baseURL, ttl: ttl, now: time.Now, logger: logger}
}

// Send issues a fresh link for the user's current address and emails it.
// Earlier links for the user stop working.
func (s *Service) Send(ctx context.Context, user *models.User) (time.Time, error) {
	if user.IsEmailVerified {
		return time.Time{}, ErrAlreadyVerified
	}

	token, hash, err := newToken()
	if err != nil {
		return time.Time{}, err
	}
	now := s.now().UTC()
	row := models.EmailVerification{
		UserID:    user.ID,
		Email:     user.Email,
		TokenHash: hash,
		ExpiresAt: now.Add(s.ttl),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? OR expires_at < ?", user.ID, now).Delete(&models.EmailVerification{}).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to store verification token: %w", err)
	}

	link := s.baseURL + "/api/auth/verify/" + token
	if err := s.mailer.Send(ctx, mailer.VerificationMessage(user.Email, link, s.ttl)); err != nil {
		if delErr := s.db.WithContext(ctx).Delete(&row).Error; delErr != nil {
			s.logger.Warn().Err(delErr).Str("user_id", user.ID).Msg("Failed to drop unsent verification token")
		}
		return time.Time{}, fmt.Errorf("failed to send verification email: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Time("expires_at", row.ExpiresAt).Msg("Verification email sent")
	return row.ExpiresAt, nil
}

// Confirm marks the address the token was issued for as verified. A token
// is single use and stops working if the user changed their email since.
func (s *Service) Confirm(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.EmailVerification
		if err := tx.Where("token_hash = ?", hashToken(token)).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}

		if err := models.FindByID(tx, row.UserID, &user); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		switch {
		case user.IsEmailVerified:
			return ErrAlreadyVerified
		case row.UsedAt != nil || user.Email != row.Email:
			return ErrInvalidToken
		case !s.now().Before(row.ExpiresAt):
			return ErrTokenExpired
		}

		if err := tx.Model(&row).Update("used_at", s.now().UTC()).Error; err != nil {
			return err
		}
		user.IsEmailVerified = true
		return tx.Model(&user).Update("is_email_verified", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func newToken() (token, hash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
