package users

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningai/morningai/internal/database/dbtest"
	"github.com/morningai/morningai/internal/models"
	"github.com/morningai/morningai/internal/twofactor"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(dbtest.New(t), twofactor.NewService("MorningAI"), zerolog.Nop())
}

func register(t *testing.T, svc *Service, username string) *models.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	return user
}

func TestRegister_FirstUserIsAdmin(t *testing.T) {
	svc := newService(t)

	first := register(t, svc, "alice")
	second := register(t, svc, "bob")

	assert.Equal(t, models.RoleAdmin, first.Role)
	assert.Equal(t, models.RoleUser, second.Role)
	assert.True(t, second.IsActive)
	assert.NotEqual(t, "correct-horse", second.PasswordHash)
}

func TestRegister_Duplicates(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	register(t, svc, "alice")

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "pw123456"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Register(ctx, RegisterInput{Username: "alice2", Email: "ALICE@example.com", Password: "pw123456"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	user := register(t, svc, "alice")

	got, err := svc.Authenticate(ctx, "Alice@Example.com ", "correct-horse", "")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct-horse", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.UpdateStatus(ctx, "someone-else", user.ID, false)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "alice@example.com", "correct-horse", "")
	assert.ErrorIs(t, err, ErrInactive)
}

func TestTwoFactorLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	user := register(t, svc, "alice")

	enrollment, err := svc.SetupTwoFactor(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)

	// Setting up again reuses the pending secret
	again, err := svc.SetupTwoFactor(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.Secret, again.Secret)

	assert.ErrorIs(t, svc.EnableTwoFactor(ctx, user.ID, "123"), ErrInvalidOTP)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, svc.EnableTwoFactor(ctx, user.ID, code))

	_, err = svc.Authenticate(ctx, "alice@example.com", "correct-horse", "")
	assert.ErrorIs(t, err, ErrTwoFactorRequired)
	_, err = svc.Authenticate(ctx, "alice@example.com", "correct-horse", "000000")
	if code != "000000" {
		assert.ErrorIs(t, err, ErrInvalidOTP)
	}
	_, err = svc.Authenticate(ctx, "alice@example.com", "correct-horse", code)
	require.NoError(t, err)

	require.NoError(t, svc.DisableTwoFactor(ctx, user.ID, code))
	reloaded, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.TwoFactorEnabled)
	assert.Empty(t, reloaded.TwoFactorSecret)
}

func TestUpdateRoleAndStatus(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin := register(t, svc, "alice")
	user := register(t, svc, "bob")

	_, err := svc.UpdateRole(ctx, admin.ID, admin.ID, models.RoleUser)
	assert.ErrorIs(t, err, ErrSelfDemotion)

	_, err = svc.UpdateRole(ctx, admin.ID, user.ID, "superuser")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.UpdateRole(ctx, admin.ID, "missing", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)

	promoted, err := svc.UpdateRole(ctx, admin.ID, user.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	_, err = svc.UpdateStatus(ctx, admin.ID, admin.ID, false)
	assert.ErrorIs(t, err, ErrSelfDeactivation)

	disabled, err := svc.UpdateStatus(ctx, admin.ID, user.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.IsActive)
}

func TestUpdateProfile(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	register(t, svc, "bob")

	taken := "bob@example.com"
	_, err := svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	email := "alice@new.example.com"
	password := "new-password"
	updated, err := svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{Email: &email, Password: &password})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)
	assert.False(t, updated.IsEmailVerified)

	_, err = svc.Authenticate(ctx, email, password, "")
	require.NoError(t, err)
}

func TestInvalidateTokens(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	user := register(t, svc, "alice")

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, svc.InvalidateTokens(ctx, user.ID, at))

	reloaded, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.TokensValidSince)
	assert.True(t, reloaded.TokensValidSince.Equal(at))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
