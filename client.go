package basehub

import (
	"context"
	"net/http"
	"strings"

	"github.com/basehub/basehub-go/auth"
	"github.com/basehub/basehub-go/config"
	"github.com/basehub/basehub-go/functions"
	"github.com/basehub/basehub-go/logging"
	"github.com/basehub/basehub-go/query"
	"github.com/basehub/basehub-go/realtime"
	"github.com/basehub/basehub-go/storage"
	"github.com/basehub/basehub-go/transport"
)

// Client is one connection to a Basehub backend. Each Client owns its own
// configuration and session; independent clients coexist safely in one
// process.
type Client struct {
	cfg    config.Config
	logger *logging.Logger

	transport *transport.Transport

	// Auth owns the session; resource facades route through it.
	Auth *auth.Manager
	// Realtime multiplexes channel subscriptions over one socket.
	Realtime *realtime.Client
	// Storage wraps the bucket/file endpoints on the storage service.
	Storage *storage.Service
	// Functions wraps the cloud-function endpoints.
	Functions *functions.Service
}

// Option customizes client construction.
type Option func(*settings)

type settings struct {
	httpClient *http.Client
	logger     *logging.Logger
	store      auth.Store
	retry      transport.RetryPolicy
	realtime   realtime.Options
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *settings) { s.httpClient = httpClient }
}

// WithLogger substitutes the SDK logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithStore substitutes the session persistence store. Pass
// auth.NewMemStore() to keep sessions process-local.
func WithStore(store auth.Store) Option {
	return func(s *settings) { s.store = store }
}

// WithRetryPolicy substitutes the transport retry policy.
func WithRetryPolicy(policy transport.RetryPolicy) Option {
	return func(s *settings) { s.retry = policy }
}

// WithRealtimeOptions overrides reconnect/heartbeat tuning. URL, TokenFunc,
// AnonKey, Dialer, and Logger are still filled in by New when unset.
func WithRealtimeOptions(opts realtime.Options) Option {
	return func(s *settings) { s.realtime = opts }
}

// New builds a client. The session is restored from the store when a
// complete one was persisted; otherwise the client starts unauthenticated.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	cfg, err := config.New(cfg)
	if err != nil {
		return nil, err
	}

	s := settings{
		retry:    transport.DefaultRetryPolicy,
		realtime: realtime.Options{AutoReconnect: true},
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logging.New(false)
	}
	if s.store == nil {
		store, storeErr := auth.NewFileStore("")
		if storeErr != nil {
			// Persistence is advisory; fall back to a process-local store.
			s.logger.Debug("session persistence unavailable", logging.Field("error", storeErr))
			s.store = auth.NewMemStore()
		} else {
			s.store = store
		}
	}

	t := transport.New(cfg, s.retry, s.httpClient, s.logger)
	manager := auth.New(t, cfg, s.store, s.logger)

	rtOpts := s.realtime
	if rtOpts.URL == "" {
		rtOpts.URL = realtimeURL(cfg.BaseURL)
	}
	if rtOpts.TokenFunc == nil {
		rtOpts.TokenFunc = manager.AccessToken
	}
	if rtOpts.AnonKey == "" {
		rtOpts.AnonKey = cfg.AnonKey
	}
	if rtOpts.Logger == nil {
		rtOpts.Logger = s.logger
	}

	return &Client{
		cfg:       cfg,
		logger:    s.logger,
		transport: t,
		Auth:      manager,
		Realtime:  realtime.New(rtOpts),
		Storage:   storage.NewService(manager, cfg.StorageURL, s.logger),
		Functions: functions.NewService(manager),
	}, nil
}

// Table starts a fluent query against one table.
func (c *Client) Table(name string) *query.Builder {
	return query.NewBuilder(c.Auth, name)
}

// Query runs raw SQL through the passthrough endpoint.
func (c *Client) Query(ctx context.Context, sql string) (*query.Result, error) {
	return query.Execute(ctx, c.Auth, sql)
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() config.Config {
	cfg := c.cfg
	headers := make(map[string]string, len(cfg.Headers))
	for key, value := range cfg.Headers {
		headers[key] = value
	}
	cfg.Headers = headers
	return cfg
}

// Logger exposes the SDK logger so host applications can adjust verbosity
// or mirror events.
func (c *Client) Logger() *logging.Logger {
	return c.logger
}

func realtimeURL(baseURL string) string {
	ws := baseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/realtime"
}
