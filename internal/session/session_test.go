package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningai/morningai/internal/cli/auth"
	"github.com/morningai/morningai/internal/cli/client"
)

// fakeAPI answers from canned results; profileGate, when set, blocks Profile
// until the test releases it.
type fakeAPI struct {
	mu          sync.Mutex
	profile     *client.User
	profileErr  error
	profileGate chan struct{}
	loginResp   *client.LoginResponse
	loginErr    error
	logoutErr   error
	logoutCalls int
	logoutAll   int
}

func (f *fakeAPI) Profile(ctx context.Context) (*client.User, error) {
	if f.profileGate != nil {
		<-f.profileGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, f.profileErr
}

func (f *fakeAPI) Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAPI) LogoutAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutAll++
	return f.logoutErr
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

var alice = &client.User{ID: "u1", Username: "alice", Email: "alice@example.com", Role: "admin"}

func TestNewManager_InitialState(t *testing.T) {
	assert.Equal(t, LoggedOut, NewManager(&fakeAPI{}, auth.NewMemoryStore("")).State())
	assert.Equal(t, Verifying, NewManager(&fakeAPI{}, auth.NewMemoryStore("tok")).State())
}

func TestStart_Success(t *testing.T) {
	store := auth.NewMemoryStore("tok")
	m := NewManager(&fakeAPI{profile: alice}, store)
	rec := &recorder{}
	m.Subscribe(rec.record)

	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, LoggedIn, m.State())
	s := m.Current()
	require.NotNil(t, s)
	assert.Equal(t, "alice", s.DisplayName)
	assert.Equal(t, "tok", s.Token)
	assert.True(t, s.IsAdmin())
	assert.Equal(t, "tok", m.Token())

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, LoggedIn, events[0].State)
	assert.Equal(t, NoRedirect, events[0].Redirect)
}

func TestStart_HTTPFailureForgetsToken(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusInternalServerError} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			store := auth.NewMemoryStore("tok")
			m := NewManager(&fakeAPI{profileErr: &client.APIError{Status: status, Message: "nope"}}, store)
			rec := &recorder{}
			m.Subscribe(rec.record)

			err := m.Start(context.Background())
			require.Error(t, err)

			assert.Equal(t, LoggedOut, m.State())
			assert.Nil(t, m.Current())
			stored, _ := store.Load()
			assert.Empty(t, stored)

			events := rec.all()
			require.Len(t, events, 1)
			assert.Equal(t, RedirectLogin, events[0].Redirect)
		})
	}
}

func TestStart_NetworkFailureKeepsToken(t *testing.T) {
	store := auth.NewMemoryStore("tok")
	m := NewManager(&fakeAPI{profileErr: fmt.Errorf("%w: dial tcp: refused", client.ErrNetwork)}, store)

	err := m.Start(context.Background())
	assert.ErrorIs(t, err, client.ErrNetwork)

	assert.Equal(t, LoggedOut, m.State())
	assert.Empty(t, m.Token())
	stored, _ := store.Load()
	assert.Equal(t, "tok", stored)
}

func TestStart_NoTokenIsNoop(t *testing.T) {
	api := &fakeAPI{profileErr: errors.New("must not be called")}
	m := NewManager(api, auth.NewMemoryStore(""))
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, LoggedOut, m.State())
}

func TestLogin(t *testing.T) {
	store := auth.NewMemoryStore("")
	api := &fakeAPI{loginResp: &client.LoginResponse{Message: "Login successful", Token: "new", User: *alice}}
	m := NewManager(api, store)
	rec := &recorder{}
	m.Subscribe(rec.record)

	result := m.Login(context.Background(), Credentials{Email: "alice@example.com", Password: "pw"})
	require.True(t, result.Success)
	require.NotNil(t, result.Session)
	assert.Equal(t, "u1", result.Session.UserID)

	assert.Equal(t, LoggedIn, m.State())
	stored, _ := store.Load()
	assert.Equal(t, "new", stored)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, RedirectDashboard, events[0].Redirect)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		message  string
		needsOTP bool
	}{
		{
			name:    "bad credentials",
			err:     &client.APIError{Status: 401, Message: "Invalid email or password"},
			message: "Invalid email or password",
		},
		{
			name: "otp required",
			err: &client.APIError{Status: 401, Message: "Two-factor authentication code required",
				Body: map[string]any{"requires_2fa": true}},
			message:  "Two-factor authentication code required",
			needsOTP: true,
		},
		{
			name:    "network",
			err:     client.ErrNetwork,
			message: "An error occurred while logging in",
		},
		{
			name:    "validation",
			err:     &client.ValidationError{Fields: map[string]string{"email": "is required"}},
			message: "invalid request: email is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(&fakeAPI{loginErr: tt.err}, auth.NewMemoryStore(""))
			rec := &recorder{}
			m.Subscribe(rec.record)

			result := m.Login(context.Background(), Credentials{Email: "a@example.com", Password: "x"})
			assert.False(t, result.Success)
			assert.Equal(t, tt.message, result.Message)
			assert.Equal(t, tt.needsOTP, result.RequiresTwoFactor)
			assert.Equal(t, LoggedOut, m.State())
			assert.Empty(t, rec.all())
		})
	}
}

func TestLogout_ClearsEvenWhenServerFails(t *testing.T) {
	store := auth.NewMemoryStore("tok")
	api := &fakeAPI{profile: alice, logoutErr: client.ErrNetwork}
	m := NewManager(api, store)
	require.NoError(t, m.Start(context.Background()))

	rec := &recorder{}
	m.Subscribe(rec.record)

	err := m.Logout(context.Background())
	assert.ErrorIs(t, err, client.ErrNetwork)

	assert.Equal(t, 1, api.logoutCalls)
	assert.Equal(t, LoggedOut, m.State())
	stored, _ := store.Load()
	assert.Empty(t, stored)
	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, RedirectLogin, events[0].Redirect)
}

func TestLogoutAll(t *testing.T) {
	api := &fakeAPI{profile: alice}
	m := NewManager(api, auth.NewMemoryStore("tok"))
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, m.LogoutAll(context.Background()))
	assert.Equal(t, 1, api.logoutAll)
	assert.Equal(t, 0, api.logoutCalls)
	assert.Equal(t, LoggedOut, m.State())
}

func TestLogout_WhenLoggedOutSkipsServer(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, auth.NewMemoryStore(""))
	require.NoError(t, m.Logout(context.Background()))
	assert.Equal(t, 0, api.logoutCalls)
}

func TestStaleVerificationAfterLogoutIsDropped(t *testing.T) {
	store := auth.NewMemoryStore("tok")
	api := &fakeAPI{profile: alice, profileGate: make(chan struct{})}
	m := NewManager(api, store)

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()

	// Logout lands while verification is in flight
	require.NoError(t, m.Logout(context.Background()))
	close(api.profileGate)
	require.NoError(t, <-done)

	assert.Equal(t, LoggedOut, m.State())
	assert.Nil(t, m.Current())
	assert.Empty(t, m.Token())
}

func TestHandleUnauthorized(t *testing.T) {
	store := auth.NewMemoryStore("tok")
	m := NewManager(&fakeAPI{profile: alice}, store)
	require.NoError(t, m.Start(context.Background()))

	rec := &recorder{}
	unsubscribe := m.Subscribe(rec.record)

	m.HandleUnauthorized()
	assert.Equal(t, LoggedOut, m.State())
	stored, _ := store.Load()
	assert.Empty(t, stored)

	// Already logged out: no further events
	m.HandleUnauthorized()
	assert.Len(t, rec.all(), 1)

	unsubscribe()
	unsubscribe()
}

func TestWatch_ReverifiesUntilCancelled(t *testing.T) {
	api := &fakeAPI{profile: alice}
	m := NewManager(api, auth.NewMemoryStore("tok"))
	require.NoError(t, m.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		m.Watch(ctx, 10*time.Millisecond)
		close(stopped)
	}()

	api.mu.Lock()
	api.profileErr = &client.APIError{Status: http.StatusUnauthorized, Message: "Token has been revoked"}
	api.mu.Unlock()

	require.Eventually(t, func() bool { return m.State() == LoggedOut }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}

// The client's 401 hook and token source wired to a real manager
func TestManagerWithClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid or expired token"}`))
			return
		}
		w.Write([]byte(`{"user":{"id":"u1","username":"alice","role":"user"}}`))
	}))
	defer srv.Close()

	store := auth.NewMemoryStore("bad")
	m := NewManager(nil, store)
	api := client.New(srv.URL,
		client.WithTokenSource(m.Token),
		client.WithUnauthorizedHandler(m.HandleUnauthorized),
	)
	m.SetAPI(api)

	err := m.Start(context.Background())
	assert.True(t, client.IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, LoggedOut, m.State())
	stored, _ := store.Load()
	assert.Empty(t, stored)

	require.NoError(t, store.Save("good"))
	m2 := NewManager(nil, store)
	m2.SetAPI(client.New(srv.URL, client.WithTokenSource(m2.Token)))
	require.NoError(t, m2.Start(context.Background()))
	assert.Equal(t, "alice", m2.Current().DisplayName)
}

// A rejected login must not touch the token that is already stored
func TestLogin_FailureKeepsStoredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/profile":
			w.Write([]byte(`{"user":{"id":"u1","username":"alice","role":"user"}}`))
		case "/api/login":
			var body struct {
				Email string `json:"email"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusUnauthorized)
			if body.Email == "otp@example.com" {
				w.Write([]byte(`{"message":"Two-factor authentication code required","requires_2fa":true}`))
				return
			}
			w.Write([]byte(`{"message":"Invalid email or password"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		email    string
		message  string
		needsOTP bool
	}{
		{name: "bad credentials", email: "alice@example.com", message: "Invalid email or password"},
		{name: "otp required", email: "otp@example.com", message: "Two-factor authentication code required", needsOTP: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := auth.NewMemoryStore("existing-valid-token")
			m := NewManager(nil, store)
			m.SetAPI(client.New(srv.URL,
				client.WithTokenSource(m.Token),
				client.WithUnauthorizedHandler(m.HandleUnauthorized),
			))
			require.NoError(t, m.Start(context.Background()))
			require.Equal(t, LoggedIn, m.State())

			rec := &recorder{}
			m.Subscribe(rec.record)

			result := m.Login(context.Background(), Credentials{Email: tt.email, Password: "wrong"})
			assert.False(t, result.Success)
			assert.Equal(t, tt.message, result.Message)
			assert.Equal(t, tt.needsOTP, result.RequiresTwoFactor)

			assert.Equal(t, LoggedIn, m.State())
			assert.Equal(t, "existing-valid-token", m.Token())
			stored, err := store.Load()
			require.NoError(t, err)
			assert.Equal(t, "existing-valid-token", stored)
			assert.Empty(t, rec.all())
		})
	}
}
