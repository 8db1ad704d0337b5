package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds each HTTP request unless overridden per call.
	DefaultTimeout = 10 * time.Second

	// storagePort is the conventional port for the storage service when the
	// storage URL is not configured explicitly: API on 8000, storage on 8001.
	storagePort = "8001"
)

// Config holds the connection settings for one client instance. Scalars are
// fixed after New; Headers may be merged in place via UpdateHeaders. Each
// client owns its own Config, so independent clients can coexist in one
// process.
type Config struct {
	// BaseURL is the backend API root, e.g. https://hub.example.com:8000.
	BaseURL string
	// StorageURL is the storage service root. When empty it is derived from
	// BaseURL by the port convention above.
	StorageURL string
	// AnonKey is the anonymous API key attached to every request.
	AnonKey string
	// Headers are defaults merged into every request.
	Headers map[string]string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// New validates and normalizes the supplied settings, filling defaults for
// StorageURL and Timeout.
func New(cfg Config) (Config, error) {
	baseURL, err := normalizeURL(cfg.BaseURL)
	if err != nil {
		return Config{}, fmt.Errorf("base URL: %w", err)
	}
	cfg.BaseURL = baseURL

	if strings.TrimSpace(cfg.AnonKey) == "" {
		return Config{}, errors.New("anonymous API key is required")
	}
	cfg.AnonKey = strings.TrimSpace(cfg.AnonKey)

	if strings.TrimSpace(cfg.StorageURL) == "" {
		cfg.StorageURL = deriveStorageURL(cfg.BaseURL)
	} else {
		storageURL, storageErr := normalizeURL(cfg.StorageURL)
		if storageErr != nil {
			return Config{}, fmt.Errorf("storage URL: %w", storageErr)
		}
		cfg.StorageURL = storageURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return cfg, nil
}

// UpdateHeaders merges the supplied headers into the defaults, overwriting
// existing keys.
func (c *Config) UpdateHeaders(headers map[string]string) {
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	for key, value := range headers {
		c.Headers[key] = value
	}
}

func normalizeURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	parsed, err := url.Parse(value)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("expected absolute URL like https://example.com")
	}
	if !strings.EqualFold(parsed.Scheme, "http") && !strings.EqualFold(parsed.Scheme, "https") {
		return "", errors.New("URL scheme must be http or https")
	}

	// Normalize any pasted endpoint/path to a canonical service root.
	parsed.RawQuery = ""
	parsed.Fragment = ""

	return strings.TrimRight(parsed.String(), "/"), nil
}

// deriveStorageURL swaps the API port for the storage port. A base URL with
// no explicit port gets the conventional storage port appended.
func deriveStorageURL(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	host, port, splitErr := net.SplitHostPort(parsed.Host)
	if splitErr != nil {
		parsed.Host = net.JoinHostPort(parsed.Host, storagePort)
		return parsed.String()
	}
	if n, convErr := strconv.Atoi(port); convErr == nil {
		parsed.Host = net.JoinHostPort(host, strconv.Itoa(n+1))
		return parsed.String()
	}
	parsed.Host = net.JoinHostPort(host, storagePort)
	return parsed.String()
}
