// Package mailer sends transactional email over SMTP, or logs it when no
// SMTP host is configured.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningai/morningai/internal/config"
)

// Message is a plain-text email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer, or a LogMailer when cfg.Host is empty
func New(cfg config.MailConfig, logger zerolog.Logger) Mailer {
	if cfg.Host == "" {
		logger.Warn().Msg("SMTP_HOST not set - emails will be logged, not sent")
		return &LogMailer{Logger: logger}
	}
	return NewSMTP(cfg)
}

// SMTPMailer sends through one SMTP relay with PLAIN auth when a username is set
type SMTPMailer struct {
	addr string
	host string
	from string
	auth smtp.Auth
	now  func() time.Time
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg config.MailConfig) *SMTPMailer {
	m := &SMTPMailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host: cfg.Host,
		from: cfg.From,
		now:  time.Now,
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

// Send blocks until the relay accepts the message or ctx is done. net/smtp
// has no context support, so a cancelled send keeps running in the background.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data := m.compose(msg)

	done := make(chan error, 1)
	go func() {
		done <- m.send(m.addr, m.auth, m.from, []string{msg.To}, data)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SMTPMailer) compose(msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}

// LogMailer writes messages to the log. Used in development.
type LogMailer struct {
	Logger zerolog.Logger
}

func (l *LogMailer) Send(_ context.Context, msg Message) error {
	l.Logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Str("body", msg.Body).Msg("Email not sent (no SMTP host)")
	return nil
}

// VerificationMessage is the email carrying an address confirmation link
func VerificationMessage(to, link string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Verify your Morning AI email address",
		Body: fmt.Sprintf("Confirm this address for your Morning AI account by opening:\n\n%s\n\n"+
			"The link expires in %s. If you did not ask for it, ignore this email.\n", link, ttl),
	}
}
