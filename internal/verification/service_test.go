package verification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/morningai/morningai/internal/database/dbtest"
	"github.com/morningai/morningai/internal/mailer"
	"github.com/morningai/morningai/internal/models"
)

// outbox records sent messages; err, when set, fails every send
type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

// lastToken pulls the token out of the newest link
func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	body := o.sent[len(o.sent)-1].Body
	const marker = "/api/auth/verify/"
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0)
	return strings.Fields(body[i+len(marker):])[0]
}

type fixture struct {
	db    *gorm.DB
	box   *outbox
	svc   *Service
	clock time.Time
	user  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: dbtest.New(t), box: &outbox{}, clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.svc = NewService(f.db, f.box, "https://api.example.com", time.Hour, zerolog.Nop())
	f.svc.now = func() time.Time { return f.clock }

	f.user = &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", Role: models.RoleAdmin, IsActive: true}
	require.NoError(t, f.db.Create(f.user).Error)
	return f
}

func (f *fixture) reload(t *testing.T) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, models.FindByID(f.db, f.user.ID, &u))
	return &u
}

func TestSendAndConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expires, err := f.svc.Send(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Add(time.Hour), expires)

	require.Len(t, f.box.sent, 1)
	assert.Equal(t, "alice@example.com", f.box.sent[0].To)
	assert.Contains(t, f.box.sent[0].Body, "https://api.example.com/api/auth/verify/")

	var row models.EmailVerification
	require.NoError(t, f.db.First(&row).Error)
	token := f.box.lastToken(t)
	assert.NotEqual(t, token, row.TokenHash)

	user, err := f.svc.Confirm(ctx, token)
	require.NoError(t, err)
	assert.True(t, user.IsEmailVerified)
	assert.True(t, f.reload(t).IsEmailVerified)

	_, err = f.svc.Confirm(ctx, token)
	assert.ErrorIs(t, err, ErrAlreadyVerified)

	_, err = f.svc.Send(ctx, f.reload(t))
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestConfirm_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Confirm(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = f.svc.Confirm(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Send(ctx, f.user)
		require.NoError(t, err)

		f.clock = f.clock.Add(time.Hour)
		_, err = f.svc.Confirm(ctx, f.box.lastToken(t))
		assert.ErrorIs(t, err, ErrTokenExpired)
		assert.False(t, f.reload(t).IsEmailVerified)
	})

	t.Run("superseded by a newer link", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Send(ctx, f.user)
		require.NoError(t, err)
		first := f.box.lastToken(t)
		_, err = f.svc.Send(ctx, f.user)
		require.NoError(t, err)

		_, err = f.svc.Confirm(ctx, first)
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = f.svc.Confirm(ctx, f.box.lastToken(t))
		assert.NoError(t, err)
	})

	t.Run("email changed after sending", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Send(ctx, f.user)
		require.NoError(t, err)
		require.NoError(t, f.db.Model(f.user).Update("email", "alice@new.example.com").Error)

		_, err = f.svc.Confirm(ctx, f.box.lastToken(t))
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.False(t, f.reload(t).IsEmailVerified)
	})
}

func TestSend_MailFailureDropsToken(t *testing.T) {
	f := newFixture(t)
	f.box.err = errors.New("connection refused")

	_, err := f.svc.Send(context.Background(), f.user)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	var count int64
	require.NoError(t, f.db.Model(&models.EmailVerification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSend_PurgesExpiredLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := models.EmailVerification{UserID: f.user.ID, Email: "old@example.com", TokenHash: hashToken("stale"), ExpiresAt: f.clock.Add(-time.Minute)}
	require.NoError(t, f.db.Create(&stale).Error)

	bob := &models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", Role: models.RoleUser, IsActive: true}
	require.NoError(t, f.db.Create(bob).Error)
	_, err := f.svc.Send(ctx, bob)
	require.NoError(t, err)

	var rows []models.EmailVerification
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, bob.ID, rows[0].UserID)
}
