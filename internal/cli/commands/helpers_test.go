package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/morningai/morningai/internal/cli/auth"
	"github.com/morningai/morningai/internal/cli/client"
	"github.com/morningai/morningai/internal/cli/config"
	"github.com/morningai/morningai/internal/session"
)

// fakeAPI implements API. Calls to methods without a func set panic via the
// nil embedded interface, which flags unexpected requests.
type fakeAPI struct {
	API

	profile          func() (*client.User, error)
	login            func(req client.LoginRequest) (*client.LoginResponse, error)
	logout           func() error
	logoutAll        func() error
	listDecisions    func(status string) ([]client.Decision, error)
	getDecision      func(id string) (*client.Decision, error)
	createDecision   func(req client.CreateDecisionRequest) (*client.Decision, error)
	approveDecision  func(id, comment string) (*client.Decision, error)
	rejectDecision   func(id, comment string) (*client.Decision, error)
	listUsers        func() ([]client.User, error)
	updateUserStatus func(id string, active bool) (*client.User, error)
	systemMetrics    func() (*client.SystemMetrics, error)
	twoFactorStatus  func() (*client.TwoFactorStatus, error)
	enableTwoFactor  func(otp string) (*client.MessageResponse, error)
	cleanupBlacklist func() (*client.CleanupResponse, error)
	listAuditLogs    func(filter client.AuditFilter) (*client.AuditPage, error)
	myAuditLogs      func(action string, page, perPage int) (*client.AuditPage, error)
	auditStats       func(days int) (*client.AuditStats, error)
	cleanupAudit     func(days int) (*client.CleanupResponse, error)
	exportAudit      func(req client.ExportAuditLogsRequest) (*client.AuditExport, error)
	revokeToken      func(req client.RevokeTokenRequest) (*client.MessageResponse, error)
	sendVerification func() (*client.VerificationSent, error)
	emailStatus      func() (*client.EmailStatus, error)
	verifyEmail      func(token string) (*client.MessageResponse, error)
}

func (f *fakeAPI) Profile(ctx context.Context) (*client.User, error) {
	if f.profile == nil {
		return &testUser, nil
	}
	return f.profile()
}

func (f *fakeAPI) Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error) {
	return f.login(req)
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	if f.logout == nil {
		return nil
	}
	return f.logout()
}

func (f *fakeAPI) LogoutAll(ctx context.Context) error {
	if f.logoutAll == nil {
		return nil
	}
	return f.logoutAll()
}

func (f *fakeAPI) ListDecisions(ctx context.Context, status string) ([]client.Decision, error) {
	return f.listDecisions(status)
}

func (f *fakeAPI) GetDecision(ctx context.Context, id string) (*client.Decision, error) {
	return f.getDecision(id)
}

func (f *fakeAPI) CreateDecision(ctx context.Context, req client.CreateDecisionRequest) (*client.Decision, error) {
	return f.createDecision(req)
}

func (f *fakeAPI) ApproveDecision(ctx context.Context, id, comment string) (*client.Decision, error) {
	return f.approveDecision(id, comment)
}

func (f *fakeAPI) RejectDecision(ctx context.Context, id, comment string) (*client.Decision, error) {
	return f.rejectDecision(id, comment)
}

func (f *fakeAPI) ListUsers(ctx context.Context) ([]client.User, error) {
	return f.listUsers()
}

func (f *fakeAPI) UpdateUserStatus(ctx context.Context, id string, active bool) (*client.User, error) {
	return f.updateUserStatus(id, active)
}

func (f *fakeAPI) SystemMetrics(ctx context.Context) (*client.SystemMetrics, error) {
	return f.systemMetrics()
}

func (f *fakeAPI) TwoFactorStatus(ctx context.Context) (*client.TwoFactorStatus, error) {
	return f.twoFactorStatus()
}

func (f *fakeAPI) EnableTwoFactor(ctx context.Context, otp string) (*client.MessageResponse, error) {
	return f.enableTwoFactor(otp)
}

func (f *fakeAPI) CleanupBlacklist(ctx context.Context) (*client.CleanupResponse, error) {
	return f.cleanupBlacklist()
}

func (f *fakeAPI) ListAuditLogs(ctx context.Context, filter client.AuditFilter) (*client.AuditPage, error) {
	return f.listAuditLogs(filter)
}

func (f *fakeAPI) MyAuditLogs(ctx context.Context, action string, page, perPage int) (*client.AuditPage, error) {
	return f.myAuditLogs(action, page, perPage)
}

func (f *fakeAPI) AuditStats(ctx context.Context, days int) (*client.AuditStats, error) {
	return f.auditStats(days)
}

func (f *fakeAPI) CleanupAuditLogs(ctx context.Context, days int) (*client.CleanupResponse, error) {
	return f.cleanupAudit(days)
}

func (f *fakeAPI) ExportAuditLogs(ctx context.Context, req client.ExportAuditLogsRequest) (*client.AuditExport, error) {
	return f.exportAudit(req)
}

func (f *fakeAPI) RevokeToken(ctx context.Context, req client.RevokeTokenRequest) (*client.MessageResponse, error) {
	return f.revokeToken(req)
}

func (f *fakeAPI) SendVerificationEmail(ctx context.Context) (*client.VerificationSent, error) {
	return f.sendVerification()
}

func (f *fakeAPI) EmailStatus(ctx context.Context) (*client.EmailStatus, error) {
	return f.emailStatus()
}

func (f *fakeAPI) VerifyEmail(ctx context.Context, token string) (*client.MessageResponse, error) {
	return f.verifyEmail(token)
}

var testUser = client.User{
	ID:       "user-1",
	Username: "ops",
	Email:    "ops@example.com",
	Role:     "admin",
	IsActive: true,
}

var testServer = &config.Server{
	URL:   "https://ops.example.com",
	Alias: "test-server",
}

// testPrompter answers prompts from canned values
type testPrompter struct {
	interactive bool
	secrets     []string
	lines       []string
	asked       []string
}

func (p *testPrompter) Interactive() bool { return p.interactive }

func (p *testPrompter) Secret(label string) (string, error) {
	p.asked = append(p.asked, label)
	if len(p.secrets) == 0 {
		return "", errors.New("no more secrets")
	}
	s := p.secrets[0]
	p.secrets = p.secrets[1:]
	return s, nil
}

func (p *testPrompter) Line(label string) (string, error) {
	p.asked = append(p.asked, label)
	if len(p.lines) == 0 {
		return "", errors.New("no more lines")
	}
	s := p.lines[0]
	p.lines = p.lines[1:]
	return s, nil
}

// testEnv bundles the fakes a command runs against
type testEnv struct {
	api     *fakeAPI
	store   *auth.MemoryStore
	session *session.Manager
	out     *bytes.Buffer
	now     time.Time
}

// newTestEnv wires a session over api. A non-empty token starts the
// session in the verifying state, as if a previous login had been saved.
func newTestEnv(t *testing.T, api *fakeAPI, token string) *testEnv {
	t.Helper()
	store := auth.NewMemoryStore(token)
	return &testEnv{
		api:     api,
		store:   store,
		session: session.NewManager(api, store),
		out:     &bytes.Buffer{},
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (te *testEnv) options() []Option {
	return []Option{
		WithOutput(te.out),
		WithServer(testServer),
		WithAPI(te.api),
		WithSession(te.session),
		WithClock(func() time.Time { return te.now }),
	}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func mustGetwd(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	return dir
}

func mustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir to %s: %v", dir, err)
	}
}
