package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/basehub/basehub-go/config"
	"github.com/basehub/basehub-go/logging"
	"github.com/basehub/basehub-go/transport"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func testConfig() config.Config {
	return config.Config{
		BaseURL: "https://hub.example.test:8000",
		AnonKey: "anon-key",
		Headers: map[string]string{},
		Timeout: time.Second,
	}
}

func newManager(rt roundTripFunc, store Store) *Manager {
	cfg := testConfig()
	tr := transport.New(cfg, transport.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, &http.Client{Transport: rt}, logging.New(false))
	return New(tr, cfg, store, logging.New(false))
}

func jsonResponse(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

func seedSession(store Store) {
	store.Set(StoreKeyAccessToken, "access-1")
	store.Set(StoreKeyRefreshToken, "refresh-1")
	store.Set(StoreKeyUser, `{"id":"u1","email":"dev@example.test","is_superuser":false}`)
}

func TestRestore_FullSession(t *testing.T) {
	store := NewMemStore()
	seedSession(store)

	m := newManager(nil, store)
	if !m.IsAuthenticated() {
		t.Fatalf("IsAuthenticated() = false after restoring a full session")
	}
	user := m.CurrentUser()
	if user == nil || user.Email != "dev@example.test" {
		t.Fatalf("CurrentUser() = %#v", user)
	}
}

func TestRestore_MissingEntryLeavesStateEmpty(t *testing.T) {
	store := NewMemStore()
	seedSession(store)
	store.Delete(StoreKeyRefreshToken)

	m := newManager(nil, store)
	if m.IsAuthenticated() {
		t.Fatalf("IsAuthenticated() = true with a missing refresh token")
	}
	if m.CurrentUser() != nil {
		t.Fatalf("partial state leaked: user is set")
	}
	if m.AccessToken() != "" {
		t.Fatalf("partial state leaked: access token is set")
	}
}

func TestRestore_CorruptUserLeavesStateEmpty(t *testing.T) {
	store := NewMemStore()
	seedSession(store)
	store.Set(StoreKeyUser, "{not json")

	m := newManager(nil, store)
	if m.IsAuthenticated() {
		t.Fatalf("IsAuthenticated() = true with a corrupt user entry")
	}
}

func TestLogin_SubmitsFormEncodedCredentials(t *testing.T) {
	var gotContentType, gotBody, gotAnonKey string
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/auth/login" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")
		gotAnonKey = r.Header.Get("X-API-Key")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		return jsonResponse(r, http.StatusOK,
			`{"access_token":"at-1","refresh_token":"rt-1","token_type":"bearer","email":"dev@example.test","user_id":"u1","is_superuser":true}`,
		), nil
	})

	store := NewMemStore()
	m := newManager(rt, store)
	resp, err := m.Login(context.Background(), "dev@example.test", "hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("Content-Type = %q", gotContentType)
	}
	if gotAnonKey != "anon-key" {
		t.Fatalf("X-API-Key = %q", gotAnonKey)
	}
	if !strings.Contains(gotBody, "username=dev%40example.test") || !strings.Contains(gotBody, "password=hunter2") {
		t.Fatalf("form body = %q", gotBody)
	}
	if resp.User == nil || resp.User.Email != "dev@example.test" || !resp.User.Superuser {
		t.Fatalf("constructed user = %#v", resp.User)
	}
	if !m.IsAuthenticated() {
		t.Fatalf("IsAuthenticated() = false after login")
	}

	for _, key := range []string{StoreKeyAccessToken, StoreKeyRefreshToken, StoreKeyUser} {
		if _, ok := store.Get(key); !ok {
			t.Fatalf("persisted entry %q missing", key)
		}
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusUnauthorized, `{"detail":"invalid credentials"}`), nil
	})

	m := newManager(rt, NewMemStore())
	_, err := m.Login(context.Background(), "dev@example.test", "wrong")
	if !transport.IsAuth(err) {
		t.Fatalf("Login() error = %v, want auth error", err)
	}
	if m.IsAuthenticated() {
		t.Fatalf("IsAuthenticated() = true after rejected login")
	}
}

func TestRegister_DoesNotAuthenticate(t *testing.T) {
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/auth/register" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		req := RegisterRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode register payload: %v", err)
		}
		return jsonResponse(r, http.StatusCreated, `{"id":"u2","email":"`+req.Email+`"}`), nil
	})

	m := newManager(rt, NewMemStore())
	user, err := m.Register(context.Background(), "new@example.test", "hunter2")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "new@example.test" {
		t.Fatalf("user = %#v", user)
	}
	if m.IsAuthenticated() {
		t.Fatalf("registering must not imply logged-in")
	}
}

func TestRefresh_RequiresRefreshToken(t *testing.T) {
	m := newManager(nil, NewMemStore())
	err := m.Refresh(context.Background())
	if !transport.IsAuth(err) {
		t.Fatalf("Refresh() error = %v, want auth error", err)
	}
	if !strings.Contains(err.Error(), "no refresh token available") {
		t.Fatalf("Refresh() error = %v", err)
	}
}

func TestRefresh_ReplacesOnlyAccessToken(t *testing.T) {
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/auth/refresh" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		payload := map[string]string{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode refresh payload: %v", err)
		}
		if payload["refresh_token"] != "refresh-1" {
			t.Fatalf("refresh_token = %q", payload["refresh_token"])
		}
		return jsonResponse(r, http.StatusOK, `{"access_token":"access-2"}`), nil
	})

	store := NewMemStore()
	seedSession(store)
	m := newManager(rt, store)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if m.AccessToken() != "access-2" {
		t.Fatalf("access token = %q, want access-2", m.AccessToken())
	}
	if persisted, _ := store.Get(StoreKeyAccessToken); persisted != "access-2" {
		t.Fatalf("persisted access token = %q", persisted)
	}
	if persisted, _ := store.Get(StoreKeyRefreshToken); persisted != "refresh-1" {
		t.Fatalf("refresh token must not rotate, got %q", persisted)
	}
}

func TestLogout_ClearsEverything(t *testing.T) {
	store := NewMemStore()
	seedSession(store)
	m := newManager(nil, store)

	m.Logout()
	if m.IsAuthenticated() {
		t.Fatalf("IsAuthenticated() = true after logout")
	}
	for _, key := range []string{StoreKeyAccessToken, StoreKeyRefreshToken, StoreKeyUser} {
		if _, ok := store.Get(key); ok {
			t.Fatalf("persisted entry %q survived logout", key)
		}
	}
}

func TestUser_UnauthenticatedSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(r, http.StatusOK, `{}`), nil
	})

	m := newManager(rt, NewMemStore())
	user, err := m.User(context.Background())
	if err != nil || user != nil {
		t.Fatalf("User() = %#v, %v; want nil, nil", user, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("unauthenticated User() issued %d network calls", calls.Load())
	}
}

func TestDo_RefreshOnceThenRetrySucceeds(t *testing.T) {
	var dataCalls, refreshCalls atomic.Int32
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshCalls.Add(1)
			return jsonResponse(r, http.StatusOK, `{"access_token":"access-2"}`), nil
		case "/tables/articles/data":
			if dataCalls.Add(1) == 1 {
				return jsonResponse(r, http.StatusUnauthorized, `{"detail":"expired"}`), nil
			}
			if got := r.Header.Get("Authorization"); got != "Bearer access-2" {
				t.Fatalf("retry Authorization = %q, want refreshed token", got)
			}
			return jsonResponse(r, http.StatusOK, `[{"id":1}]`), nil
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
			return nil, nil
		}
	})

	store := NewMemStore()
	seedSession(store)
	m := newManager(rt, store)

	body, err := m.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/tables/articles/data"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if string(body) != `[{"id":1}]` {
		t.Fatalf("body = %q", body)
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("refresh calls = %d, want exactly 1", got)
	}
	if got := dataCalls.Load(); got != 2 {
		t.Fatalf("original operation attempted %d times, want 2", got)
	}
	if !m.IsAuthenticated() {
		t.Fatalf("session must survive a successful refresh-retry")
	}
}

func TestDo_NoRefreshTokenFailsImmediately(t *testing.T) {
	var dataCalls atomic.Int32
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == "/auth/refresh" {
			t.Fatalf("refresh must not be attempted without a refresh token")
		}
		dataCalls.Add(1)
		return jsonResponse(r, http.StatusUnauthorized, `{"detail":"expired"}`), nil
	})

	m := newManager(rt, NewMemStore())
	_, err := m.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/users/me"})
	if !transport.IsAuth(err) {
		t.Fatalf("Do() error = %v, want the original auth error", err)
	}
	if got := dataCalls.Load(); got != 1 {
		t.Fatalf("original operation attempted %d times, want 1", got)
	}
	if m.IsAuthenticated() {
		t.Fatalf("auth state must be cleared")
	}
}

func TestDo_FailedRetryPropagatesOriginalErrorAndClearsState(t *testing.T) {
	var dataCalls atomic.Int32
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == "/auth/refresh" {
			return jsonResponse(r, http.StatusOK, `{"access_token":"access-2"}`), nil
		}
		dataCalls.Add(1)
		return jsonResponse(r, http.StatusUnauthorized, `{"detail":"revoked"}`), nil
	})

	store := NewMemStore()
	seedSession(store)
	m := newManager(rt, store)

	_, err := m.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/users/me"})
	if !transport.IsAuth(err) {
		t.Fatalf("Do() error = %v, want the original auth error", err)
	}
	if got := dataCalls.Load(); got != 2 {
		t.Fatalf("original operation attempted %d times, want 2", got)
	}
	if m.IsAuthenticated() {
		t.Fatalf("auth state must be cleared after a failed retry")
	}
	if _, ok := store.Get(StoreKeyAccessToken); ok {
		t.Fatalf("persisted session must be cleared after a failed retry")
	}
}

func TestDo_AttachesAnonKeyWithoutSession(t *testing.T) {
	var gotAnonKey, gotAuth string
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotAnonKey = r.Header.Get("X-API-Key")
		gotAuth = r.Header.Get("Authorization")
		return jsonResponse(r, http.StatusOK, `[]`), nil
	})

	m := newManager(rt, NewMemStore())
	if _, err := m.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/tables/t/data"}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if gotAnonKey != "anon-key" {
		t.Fatalf("X-API-Key = %q, want anon key even when unauthenticated", gotAnonKey)
	}
	if gotAuth != "" {
		t.Fatalf("Authorization = %q, want empty without a session", gotAuth)
	}
}

func TestUser_AuthFailureClearsState(t *testing.T) {
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == "/auth/refresh" {
			return jsonResponse(r, http.StatusUnauthorized, `{"detail":"refresh revoked"}`), nil
		}
		return jsonResponse(r, http.StatusUnauthorized, `{"detail":"expired"}`), nil
	})

	store := NewMemStore()
	seedSession(store)
	m := newManager(rt, store)

	_, err := m.User(context.Background())
	if !transport.IsAuth(err) {
		t.Fatalf("User() error = %v, want auth error", err)
	}
	if m.IsAuthenticated() {
		t.Fatalf("credentials are dead; state must be cleared")
	}
}
