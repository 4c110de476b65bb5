package mailer

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningai/morningai/internal/config"
)

func testSMTP(send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) *SMTPMailer {
	m := NewSMTP(config.MailConfig{Host: "smtp.example.com", Port: 587, Username: "mailer", Password: "pw", From: "noreply@morningai.com"})
	m.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	m.send = send
	return m
}

func TestSMTPMailer_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m := testSMTP(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	})

	err := m.Send(context.Background(), VerificationMessage("alice@example.com", "https://api.example.com/api/auth/verify/abc", time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@morningai.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)

	raw := string(gotMsg)
	assert.Contains(t, raw, "To: alice@example.com\r\n")
	assert.Contains(t, raw, "Subject: Verify your Morning AI email address\r\n")
	assert.Contains(t, raw, "Date: Sun, 01 Mar 2026 12:00:00 +0000\r\n")
	assert.Contains(t, raw, "\r\n\r\nConfirm this address")
	assert.Contains(t, raw, "https://api.example.com/api/auth/verify/abc\r\n")
	assert.Contains(t, raw, "expires in 1h0m0s")
	assert.NotContains(t, strings.ReplaceAll(raw, "\r\n", ""), "\n")
}

func TestSMTPMailer_Errors(t *testing.T) {
	m := testSMTP(func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("535 authentication failed")
	})
	err := m.Send(context.Background(), Message{To: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Message{To: "a@example.com"}), context.Canceled)
}

func TestNew_WithoutHostLogs(t *testing.T) {
	var buf bytes.Buffer
	m := New(config.MailConfig{}, zerolog.New(&buf))

	logMailer, ok := m.(*LogMailer)
	require.True(t, ok)
	require.NoError(t, logMailer.Send(context.Background(), Message{To: "a@example.com", Subject: "hi", Body: "link"}))
	assert.Contains(t, buf.String(), `"to":"a@example.com"`)

	_, ok = New(config.MailConfig{Host: "smtp.example.com", Port: 25}, zerolog.Nop()).(*SMTPMailer)
	assert.True(t, ok)
}
