package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/basehub/basehub-go/config"
	"github.com/basehub/basehub-go/logging"
	"github.com/basehub/basehub-go/transport"
)

const (
	loginPath    = "/auth/login"
	registerPath = "/auth/register"
	refreshPath  = "/auth/refresh"
	mePath       = "/users/me"

	anonKeyHeader = "X-API-Key"
)

// Manager owns the credential lifecycle and gives every resource facade a
// single entry point for authenticated requests. It restores a persisted
// session at construction and keeps the store in sync with every state
// change.
type Manager struct {
	transport *transport.Transport
	cfg       config.Config
	store     Store
	logger    *logging.Logger

	mu           sync.Mutex
	refreshMu    sync.Mutex
	user         *User
	accessToken  string
	refreshToken string
}

func New(t *transport.Transport, cfg config.Config, store Store, logger *logging.Logger) *Manager {
	m := &Manager{transport: t, cfg: cfg, store: store, logger: logger}
	m.restore()
	return m
}

// restore loads a persisted session. All three entries must be present and
// well-formed, otherwise the state stays empty.
func (m *Manager) restore() {
	if m.store == nil {
		return
	}
	accessToken, okAccess := m.store.Get(StoreKeyAccessToken)
	refreshToken, okRefresh := m.store.Get(StoreKeyRefreshToken)
	rawUser, okUser := m.store.Get(StoreKeyUser)
	if !okAccess || !okRefresh || !okUser || accessToken == "" || refreshToken == "" {
		return
	}
	user := User{}
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		m.logger.Debug("ignoring corrupt persisted session", logging.Field("error", err))
		return
	}
	m.mu.Lock()
	m.accessToken = accessToken
	m.refreshToken = refreshToken
	m.user = &user
	m.mu.Unlock()
	m.logger.Debug("restored persisted session", logging.Field("email", user.Email))
}

// IsAuthenticated reports whether a full session (both tokens and a user)
// is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticatedLocked()
}

func (m *Manager) authenticatedLocked() bool {
	return m.accessToken != "" && m.refreshToken != "" && m.user != nil
}

// CurrentUser returns the cached user without a network call, or nil when
// unauthenticated.
func (m *Manager) CurrentUser() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	user := *m.user
	return &user
}

// AccessToken returns the current access token, or "" when none is held.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken
}

// Login submits credentials form-encoded, per the backend's login contract.
// On success the session becomes authenticated and is persisted.
func (m *Manager) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	data, err := m.transport.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    loginPath,
		RawBody: []byte(form.Encode()),
		Headers: m.mergeHeaders(map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
		}),
	})
	if err != nil {
		m.logger.Warn("login rejected", logging.Field("email", email), logging.Field("error", err))
		return nil, err
	}

	resp := LoginResponse{}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	user := &User{ID: resp.UserID, Email: resp.Email, Superuser: resp.IsSuperuser}
	resp.User = user

	m.mu.Lock()
	m.accessToken = resp.AccessToken
	m.refreshToken = resp.RefreshToken
	m.user = user
	m.mu.Unlock()
	m.persist()

	m.logger.Info("logged in", logging.Field("email", user.Email))
	return &resp, nil
}

// Register creates an account. Registering never implies logged-in; call
// Login afterwards.
func (m *Manager) Register(ctx context.Context, email, password string) (*User, error) {
	data, err := m.transport.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    registerPath,
		Body:    RegisterRequest{Email: email, Password: password},
		Headers: m.mergeHeaders(nil),
	})
	if err != nil {
		return nil, err
	}
	user := User{}
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	m.logger.Info("registered account", logging.Field("email", user.Email))
	return &user, nil
}

// Refresh mints a new access token from the held refresh token. The refresh
// token itself is not rotated. Concurrent callers share one in-flight
// refresh: whoever loses the race observes the already-replaced token and
// skips the round-trip.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	stale := m.accessToken
	m.mu.Unlock()
	return m.refreshShared(ctx, stale)
}

func (m *Manager) refreshShared(ctx context.Context, staleToken string) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	refreshToken := m.refreshToken
	current := m.accessToken
	m.mu.Unlock()

	if refreshToken == "" {
		return transport.AuthError("no refresh token available")
	}
	if staleToken != "" && current != staleToken {
		m.logger.Debug("skipping refresh: token already replaced")
		return nil
	}

	data, err := m.transport.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    refreshPath,
		Body:    map[string]string{"refresh_token": refreshToken},
		Headers: m.mergeHeaders(nil),
	})
	if err != nil {
		m.logger.Warn("session refresh rejected", logging.Field("error", err))
		return err
	}
	resp := refreshResponse{}
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}

	m.mu.Lock()
	m.accessToken = resp.AccessToken
	m.mu.Unlock()
	m.persist()
	m.logger.Debug("access token refreshed")
	return nil
}

// Logout clears in-memory and persisted state unconditionally. No server
// round-trip is made.
func (m *Manager) Logout() {
	m.clearState()
	m.logger.Info("logged out")
}

// User fetches the current user from the backend, updating the cache and
// the store. Unauthenticated managers return nil without a network call.
// An Auth failure clears all session state: the credentials are dead.
func (m *Manager) User(ctx context.Context) (*User, error) {
	if !m.IsAuthenticated() {
		return nil, nil
	}
	data, err := m.Do(ctx, transport.Request{Method: http.MethodGet, Path: mePath})
	if err != nil {
		if transport.IsAuth(err) {
			m.clearState()
		}
		return nil, err
	}
	user := User{}
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.user = &user
	m.mu.Unlock()
	m.persist()
	return &user, nil
}

// Do executes an authenticated request. On an Auth failure with a refresh
// token available, it refreshes once and retries the original request
// exactly once; any further failure clears the session and propagates the
// original error. This refresh-once-then-give-up policy bounds retry storms
// from permanently invalid credentials.
func (m *Manager) Do(ctx context.Context, req transport.Request) ([]byte, error) {
	m.mu.Lock()
	staleToken := m.accessToken
	hasRefresh := m.refreshToken != ""
	m.mu.Unlock()

	caller := req.Headers
	req.Headers = m.mergeHeaders(caller)

	data, err := m.transport.Do(ctx, req)
	if err == nil || !transport.IsAuth(err) {
		return data, err
	}

	if hasRefresh {
		if refreshErr := m.refreshShared(ctx, staleToken); refreshErr == nil {
			req.Headers = m.mergeHeaders(caller)
			retried, retryErr := m.transport.Do(ctx, req)
			if retryErr == nil {
				return retried, nil
			}
		}
	}

	m.clearState()
	return nil, err
}

// mergeHeaders computes request headers: the anonymous key is attached
// whenever configured, independent of auth state; the bearer header only
// when authenticated. Caller headers win on conflict.
func (m *Manager) mergeHeaders(caller map[string]string) map[string]string {
	headers := map[string]string{}
	if strings.TrimSpace(m.cfg.AnonKey) != "" {
		headers[anonKeyHeader] = m.cfg.AnonKey
	}
	m.mu.Lock()
	if m.authenticatedLocked() {
		headers["Authorization"] = "Bearer " + m.accessToken
	}
	m.mu.Unlock()
	for key, value := range caller {
		headers[key] = value
	}
	return headers
}

func (m *Manager) persist() {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	accessToken, refreshToken, user := m.accessToken, m.refreshToken, m.user
	m.mu.Unlock()
	if accessToken == "" || refreshToken == "" || user == nil {
		return
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return
	}
	m.store.Set(StoreKeyAccessToken, accessToken)
	m.store.Set(StoreKeyRefreshToken, refreshToken)
	m.store.Set(StoreKeyUser, string(payload))
}

func (m *Manager) clearState() {
	m.mu.Lock()
	m.accessToken = ""
	m.refreshToken = ""
	m.user = nil
	m.mu.Unlock()
	if m.store != nil {
		m.store.Delete(StoreKeyAccessToken)
		m.store.Delete(StoreKeyRefreshToken)
		m.store.Delete(StoreKeyUser)
	}
}
