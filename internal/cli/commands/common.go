package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/morningai/morningai/internal/cli/auth"
	"github.com/morningai/morningai/internal/cli/client"
	"github.com/morningai/morningai/internal/cli/config"
	"github.com/morningai/morningai/internal/cli/serverselect"
	"github.com/morningai/morningai/internal/guard"
	"github.com/morningai/morningai/internal/session"
)

// API is every endpoint the screens call. *client.Client implements it.
type API interface {
	Health(ctx context.Context) (*client.HealthResponse, error)
	Register(ctx context.Context, req client.RegisterRequest) (*client.UserResponse, error)
	Profile(ctx context.Context) (*client.User, error)
	UpdateProfile(ctx context.Context, req client.UpdateProfileRequest) (*client.User, error)
	Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
	RevokeToken(ctx context.Context, req client.RevokeTokenRequest) (*client.MessageResponse, error)

	SendVerificationEmail(ctx context.Context) (*client.VerificationSent, error)
	EmailStatus(ctx context.Context) (*client.EmailStatus, error)
	VerifyEmail(ctx context.Context, token string) (*client.MessageResponse, error)

	SetupTwoFactor(ctx context.Context) (*client.TwoFactorSetup, error)
	EnableTwoFactor(ctx context.Context, otp string) (*client.MessageResponse, error)
	DisableTwoFactor(ctx context.Context, otp string) (*client.MessageResponse, error)
	TwoFactorStatus(ctx context.Context) (*client.TwoFactorStatus, error)

	SystemMetrics(ctx context.Context) (*client.SystemMetrics, error)

	ListDecisions(ctx context.Context, status string) ([]client.Decision, error)
	GetDecision(ctx context.Context, id string) (*client.Decision, error)
	CreateDecision(ctx context.Context, req client.CreateDecisionRequest) (*client.Decision, error)
	ApproveDecision(ctx context.Context, id, comment string) (*client.Decision, error)
	RejectDecision(ctx context.Context, id, comment string) (*client.Decision, error)

	ListUsers(ctx context.Context) ([]client.User, error)
	GetUser(ctx context.Context, id string) (*client.User, error)
	UpdateUserRole(ctx context.Context, id, role string) (*client.User, error)
	UpdateUserStatus(ctx context.Context, id string, active bool) (*client.User, error)

	ListBlacklist(ctx context.Context, page, perPage int) (*client.BlacklistPage, error)
	CleanupBlacklist(ctx context.Context) (*client.CleanupResponse, error)
	ListAuditLogs(ctx context.Context, filter client.AuditFilter) (*client.AuditPage, error)
	MyAuditLogs(ctx context.Context, action string, page, perPage int) (*client.AuditPage, error)
	AuditStats(ctx context.Context, days int) (*client.AuditStats, error)
	CleanupAuditLogs(ctx context.Context, days int) (*client.CleanupResponse, error)
	ExportAuditLogs(ctx context.Context, req client.ExportAuditLogsRequest) (*client.AuditExport, error)
}

// deps is what a screen runs against
type deps struct {
	out     io.Writer
	server  *config.Server
	api     API
	session *session.Manager
	now     func() time.Time
}

// Option overrides a dependency, mostly for tests
type Option func(*deps)

// WithOutput redirects screen output
func WithOutput(w io.Writer) Option {
	return func(d *deps) { d.out = w }
}

// WithServer skips config lookup and uses server
func WithServer(server *config.Server) Option {
	return func(d *deps) { d.server = server }
}

// WithAPI replaces the HTTP client
func WithAPI(api API) Option {
	return func(d *deps) { d.api = api }
}

// WithSession replaces the keyring-backed session
func WithSession(m *session.Manager) Option {
	return func(d *deps) { d.session = m }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// env lazily builds deps once per command invocation, so PreRunE and RunE
// share a single session.
type env struct {
	opts []Option
	once sync.Once
	d    *deps
	err  error
}

func newEnv(opts []Option) *env {
	return &env{opts: opts}
}

func (e *env) get(cmd *cobra.Command) (*deps, error) {
	e.once.Do(func() {
		e.d, e.err = buildDeps(serverFlag(cmd), e.opts)
	})
	return e.d, e.err
}

// requireLogin is the PreRunE of every screen behind the login wall
func (e *env) requireLogin() func(cmd *cobra.Command, args []string) error {
	return guard.Require(func(cmd *cobra.Command) (*session.Manager, error) {
		d, err := e.get(cmd)
		if err != nil {
			return nil, err
		}
		return d.session, nil
	})
}

func serverFlag(cmd *cobra.Command) string {
	if cmd == nil {
		return ""
	}
	if f := cmd.Flag("server"); f != nil {
		return f.Value.String()
	}
	return ""
}

func buildDeps(serverAlias string, opts []Option) (*deps, error) {
	d := &deps{out: os.Stdout, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}

	if d.server == nil && (d.api == nil || d.session == nil) {
		server, err := getSelectedServer(serverAlias)
		if err != nil {
			return nil, err
		}
		d.server = server
	}

	if d.session == nil {
		d.session = session.NewManager(nil, auth.ForServer(d.server.URL))
	}

	if d.api == nil {
		clientOpts := []client.Option{
			client.WithTokenSource(d.session.Token),
			client.WithUnauthorizedHandler(d.session.HandleUnauthorized),
		}
		if d.server.Insecure {
			clientOpts = append(clientOpts, client.WithInsecureTLS())
		}
		d.api = client.New(d.server.URL, clientOpts...)
	}
	d.session.SetAPI(d.api)

	return d, nil
}

// getSelectedServer loads the config and returns the selected server.
// This is common logic used by most commands.
func getSelectedServer(serverAlias string) (*config.Server, error) {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'morningai init' to create a configuration file", err)
	}

	server, err := serverselect.ResolveServer(cfg, serverAlias)
	if err != nil {
		return nil, err
	}

	if server.URL == "" {
		return nil, fmt.Errorf("server URL is empty. Please edit %s and add a valid URL", config.ConfigFileName)
	}

	return server, nil
}

// screenContext derives a context that ends when the session does, so
// long-running screens stop as soon as the token is revoked.
func (d *deps) screenContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	unsubscribe := d.session.Subscribe(func(ev session.Event) {
		if ev.State == session.LoggedOut {
			cancel(guard.ErrLoginRequired)
		}
	})
	go d.session.Watch(ctx, session.DefaultWatchInterval)

	return ctx, func() {
		unsubscribe()
		cancel(context.Canceled)
	}
}

// pollScreen renders immediately and then on every tick until ctx ends
func pollScreen(ctx context.Context, interval time.Duration, render func(context.Context) error) error {
	if err := render(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); cause != nil && cause != context.Canceled {
				return cause
			}
			return nil
		case <-ticker.C:
			if err := render(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				return err
			}
		}
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
