package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/morningai/morningai/internal/auth"
	"github.com/morningai/morningai/internal/models"
	"github.com/morningai/morningai/internal/twofactor"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactive           = errors.New("account is disabled")
	ErrTwoFactorRequired  = errors.New("two-factor code required")
	ErrInvalidOTP         = errors.New("invalid two-factor code")
	ErrInvalidRole        = errors.New(`invalid role, must be "admin" or "user"`)
	ErrSelfDemotion       = errors.New("cannot remove your own admin role")
	ErrSelfDeactivation   = errors.New("cannot deactivate your own account")
)

// RegisterInput is the data needed to create an account
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// ProfileUpdate carries optional profile changes
type ProfileUpdate struct {
	Email    *string
	Password *string
}

// Service manages user accounts
type Service struct {
	db        *gorm.DB
	twoFactor *twofactor.Service
	logger    zerolog.Logger
}

// NewService creates a user service
func NewService(db *gorm.DB, twoFactor *twofactor.Service, logger zerolog.Logger) *Service {
	return &Service{db: db, twoFactor: twoFactor, logger: logger}
}

// Register creates an account. The first account ever created is an admin.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		IsActive:     true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}

		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			user.Role = models.RoleAdmin
		}
		return tx.Create(user).Error
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Str("role", user.Role).Msg("User registered")
	return user, nil
}

// Authenticate checks credentials and, when enabled, the TOTP code
func (s *Service) Authenticate(ctx context.Context, email, password, otp string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		return &user, ErrInvalidCredentials
	}

	if !user.IsActive {
		return &user, ErrInactive
	}

	if user.TwoFactorEnabled {
		if otp == "" {
			return &user, ErrTwoFactorRequired
		}
		if !s.twoFactor.Validate(user.TwoFactorSecret, otp) {
			return &user, ErrInvalidOTP
		}
	}

	return &user, nil
}

// Get loads a user by ID
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := models.FindByID(s.db.WithContext(ctx), id, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// List returns all users, oldest first
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateProfile changes the caller's email and/or password.
// A new email must be verified again.
func (s *Service) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if update.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		if email != user.Email {
			var count int64
			if err := s.db.WithContext(ctx).Model(&models.User{}).
				Where("email = ? AND id <> ?", email, id).Count(&count).Error; err != nil {
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
			if count > 0 {
				return nil, ErrEmailTaken
			}
			changes["email"] = email
			changes["is_email_verified"] = false
		}
	}
	if update.Password != nil {
		hash, err := auth.HashPassword(*update.Password)
		if err != nil {
			return nil, err
		}
		changes["password_hash"] = hash
	}

	if len(changes) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.Get(ctx, id)
}

// UpdateRole sets a user's role. Admins cannot demote themselves.
func (s *Service) UpdateRole(ctx context.Context, actorID, id, role string) (*models.User, error) {
	if role != models.RoleAdmin && role != models.RoleUser {
		return nil, ErrInvalidRole
	}
	if id == actorID && role != models.RoleAdmin {
		return nil, ErrSelfDemotion
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("role", role).Error; err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	user.Role = role

	s.logger.Info().Str("user_id", id).Str("role", role).Str("updated_by", actorID).Msg("User role updated")
	return user, nil
}

// UpdateStatus activates or deactivates a user. Admins cannot deactivate themselves.
func (s *Service) UpdateStatus(ctx context.Context, actorID, id string, active bool) (*models.User, error) {
	if id == actorID && !active {
		return nil, ErrSelfDeactivation
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	user.IsActive = active

	s.logger.Info().Str("user_id", id).Bool("is_active", active).Str("updated_by", actorID).Msg("User status updated")
	return user, nil
}

// InvalidateTokens rejects every token issued up to now
func (s *Service) InvalidateTokens(ctx context.Context, id string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("tokens_valid_since", at).Error
	if err != nil {
		return fmt.Errorf("failed to invalidate tokens: %w", err)
	}
	return nil
}

// SetupTwoFactor creates (or reuses) the user's TOTP secret without enabling it
func (s *Service) SetupTwoFactor(ctx context.Context, id string) (*twofactor.Enrollment, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	secret := user.TwoFactorSecret
	if secret == "" {
		if secret, err = s.twoFactor.GenerateSecret(user.Email); err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Model(user).Update("two_factor_secret", secret).Error; err != nil {
			return nil, fmt.Errorf("failed to save totp secret: %w", err)
		}
	}

	return s.twoFactor.Enroll(secret, user.Email)
}

// EnableTwoFactor turns 2FA on once the user proves they hold the secret
func (s *Service) EnableTwoFactor(ctx context.Context, id, otp string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.twoFactor.Validate(user.TwoFactorSecret, otp) {
		return ErrInvalidOTP
	}
	if err := s.db.WithContext(ctx).Model(user).Update("two_factor_enabled", true).Error; err != nil {
		return fmt.Errorf("failed to enable 2fa: %w", err)
	}
	return nil
}

// DisableTwoFactor turns 2FA off and forgets the secret
func (s *Service) DisableTwoFactor(ctx context.Context, id, otp string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.twoFactor.Validate(user.TwoFactorSecret, otp) {
		return ErrInvalidOTP
	}
	err = s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"two_factor_enabled": false,
		"two_factor_secret":  "",
	}).Error
	if err != nil {
		return fmt.Errorf("failed to disable 2fa: %w", err)
	}
	return nil
}
