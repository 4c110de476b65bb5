// Package session owns the operator's authentication state.
//
// A Manager moves between LoggedOut, Verifying and LoggedIn. Every transition
// bumps a generation counter, so a slow verification or login response that
// completes after a newer transition (a logout, a 401) is discarded instead of
// resurrecting the session.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/morningai/morningai/internal/cli/client"
)

// State is the authentication state
type State int

const (
	LoggedOut State = iota
	Verifying
	LoggedIn
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case Verifying:
		return "verifying"
	case LoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

// Redirect names the screen a transition asks the UI to show
type Redirect string

const (
	NoRedirect        Redirect = ""
	RedirectLogin     Redirect = "login"
	RedirectDashboard Redirect = "dashboard"
)

// DefaultWatchInterval is how often a logged-in session is re-verified
const DefaultWatchInterval = 5 * time.Minute

// Session is the authenticated operator
type Session struct {
	UserID           string
	DisplayName      string
	Email            string
	Role             string
	TwoFactorEnabled bool
	Token            string
	TokenIssuedAt    time.Time
}

// IsAdmin reports whether the operator holds the admin role
func (s Session) IsAdmin() bool {
	return s.Role == "admin"
}

// Event is emitted on every transition
type Event struct {
	State   State
	Session *Session
	// Redirect is set when the transition implies navigation
	Redirect Redirect
}

// Credentials are what the login screen collects
type Credentials struct {
	Email    string
	Password string
	OTP      string
}

// LoginResult reports the outcome of Login
type LoginResult struct {
	Success           bool
	Message           string
	RequiresTwoFactor bool
	Session           *Session
}

// TokenStore persists the token between runs.
// Load returns "" without error when nothing is stored.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Delete() error
}

// API is the subset of the API client the session needs
type API interface {
	Profile(ctx context.Context) (*client.User, error)
	Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
}

// Manager is safe for concurrent use
type Manager struct {
	mu      sync.Mutex
	api     API
	store   TokenStore
	state   State
	token   string
	session *Session
	gen     uint64

	subs    map[int]func(Event)
	nextSub int

	now func() time.Time
}

// NewManager creates a manager. It starts in Verifying when the store holds a
// token, else in LoggedOut. A store that cannot be read counts as empty.
func NewManager(api API, store TokenStore) *Manager {
	m := &Manager{
		api:   api,
		store: store,
		state: LoggedOut,
		subs:  make(map[int]func(Event)),
		now:   time.Now,
	}
	if token, err := store.Load(); err == nil && token != "" {
		m.token = token
		m.state = Verifying
	}
	return m
}

// SetAPI wires the API client after construction. The client and the manager
// reference each other (token source and 401 hook), so one side is set late.
func (m *Manager) SetAPI(api API) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.api = api
}

// State returns the current state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the session, or nil when not logged in
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Token is the bearer token requests should carry, or ""
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == LoggedOut {
		return ""
	}
	return m.token
}

// Subscribe registers fn for every future transition
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Start runs startup verification when a stored token exists.
// HTTP failures (401 or otherwise) forget the token. Network failures log the
// operator out for this run but keep the token for the next one.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Verifying {
		m.mu.Unlock()
		return nil
	}
	gen := m.gen
	api := m.api
	m.mu.Unlock()

	return m.verify(ctx, api, gen)
}

// Watch re-verifies a logged-in session every interval until ctx is done
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.state != LoggedIn {
				m.mu.Unlock()
				continue
			}
			gen := m.gen
			api := m.api
			m.mu.Unlock()

			_ = m.verify(ctx, api, gen)
		}
	}
}

func (m *Manager) verify(ctx context.Context, api API, gen uint64) error {
	user, err := api.Profile(ctx)

	m.mu.Lock()
	if gen != m.gen {
		// A newer transition already decided the state
		m.mu.Unlock()
		return err
	}

	var ev Event
	switch {
	case err == nil:
		issuedAt := m.now()
		if m.session != nil && m.session.Token == m.token {
			issuedAt = m.session.TokenIssuedAt
		}
		m.session = newSession(user, m.token, issuedAt)
		ev = m.transitionLocked(LoggedIn, NoRedirect)
	case errors.Is(err, client.ErrNetwork) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		m.session = nil
		ev = m.transitionLocked(LoggedOut, RedirectLogin)
	default:
		m.session = nil
		m.token = ""
		_ = m.store.Delete()
		ev = m.transitionLocked(LoggedOut, RedirectLogin)
	}
	subs := m.subscribersLocked()
	m.mu.Unlock()

	notify(subs, ev)
	return err
}

// Login authenticates and, on success, persists the token
func (m *Manager) Login(ctx context.Context, creds Credentials) LoginResult {
	m.mu.Lock()
	gen := m.gen
	api := m.api
	m.mu.Unlock()

	resp, err := api.Login(ctx, client.LoginRequest{
		Email:    creds.Email,
		Password: creds.Password,
		OTP:      creds.OTP,
	})
	if err != nil {
		return failedLogin(err)
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return LoginResult{Message: "login was superseded by another session change"}
	}
	if err := m.store.Save(resp.Token); err != nil {
		m.mu.Unlock()
		return LoginResult{Message: "failed to save token: " + err.Error()}
	}
	m.token = resp.Token
	m.session = newSession(&resp.User, resp.Token, m.now())
	ev := m.transitionLocked(LoggedIn, RedirectDashboard)
	s := *m.session
	subs := m.subscribersLocked()
	m.mu.Unlock()

	notify(subs, ev)
	return LoginResult{Success: true, Message: resp.Message, Session: &s}
}

func failedLogin(err error) LoginResult {
	var (
		apiErr   *client.APIError
		validErr *client.ValidationError
	)
	switch {
	case errors.As(err, &apiErr):
		return LoginResult{Message: apiErr.Message, RequiresTwoFactor: client.RequiresTwoFactor(err)}
	case errors.As(err, &validErr):
		return LoginResult{Message: validErr.Error()}
	default:
		return LoginResult{Message: "An error occurred while logging in"}
	}
}

// Logout revokes the token on the server when possible, then always clears
// local state. The server error, if any, is returned for display only.
func (m *Manager) Logout(ctx context.Context) error {
	return m.logout(func(api API) error { return api.Logout(ctx) })
}

// LogoutAll is Logout that also revokes every other token of the operator
func (m *Manager) LogoutAll(ctx context.Context) error {
	return m.logout(func(api API) error { return api.LogoutAll(ctx) })
}

func (m *Manager) logout(call func(API) error) error {
	m.mu.Lock()
	api := m.api
	hasToken := m.token != "" && m.state != LoggedOut
	m.mu.Unlock()

	var callErr error
	if hasToken {
		callErr = call(api)
	}

	m.mu.Lock()
	m.token = ""
	m.session = nil
	storeErr := m.store.Delete()
	ev := m.transitionLocked(LoggedOut, RedirectLogin)
	subs := m.subscribersLocked()
	m.mu.Unlock()

	notify(subs, ev)
	if storeErr != nil {
		return storeErr
	}
	return callErr
}

// HandleUnauthorized clears the session after any 401. It is the API
// client's unauthorized hook.
func (m *Manager) HandleUnauthorized() {
	m.mu.Lock()
	if m.state == LoggedOut {
		m.mu.Unlock()
		return
	}
	m.token = ""
	m.session = nil
	_ = m.store.Delete()
	ev := m.transitionLocked(LoggedOut, RedirectLogin)
	subs := m.subscribersLocked()
	m.mu.Unlock()

	notify(subs, ev)
}

func (m *Manager) transitionLocked(state State, redirect Redirect) Event {
	m.gen++
	m.state = state
	ev := Event{State: state, Redirect: redirect}
	if m.session != nil {
		s := *m.session
		ev.Session = &s
	}
	return ev
}

func (m *Manager) subscribersLocked() []func(Event) {
	subs := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	return subs
}

// Subscribers run outside the lock so they may call back into the manager
func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

func newSession(user *client.User, token string, issuedAt time.Time) *Session {
	return &Session{
		UserID:           user.ID,
		DisplayName:      user.Username,
		Email:            user.Email,
		Role:             user.Role,
		TwoFactorEnabled: user.TwoFactorEnabled,
		Token:            token,
		TokenIssuedAt:    issuedAt,
	}
}
