package config

import (
	"testing"
	"time"
)

func TestNew_DerivesStorageURLFromPortConvention(t *testing.T) {
	cfg, err := New(Config{BaseURL: "http://localhost:8000", AnonKey: "anon"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.StorageURL != "http://localhost:8001" {
		t.Fatalf("StorageURL = %q, want port+1 substitution", cfg.StorageURL)
	}
}

func TestNew_DerivesStorageURLWithoutExplicitPort(t *testing.T) {
	cfg, err := New(Config{BaseURL: "https://hub.example.com", AnonKey: "anon"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.StorageURL != "https://hub.example.com:8001" {
		t.Fatalf("StorageURL = %q, want conventional storage port", cfg.StorageURL)
	}
}

func TestNew_KeepsExplicitStorageURL(t *testing.T) {
	cfg, err := New(Config{
		BaseURL:    "http://localhost:8000",
		StorageURL: "http://files.local:9900/",
		AnonKey:    "anon",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.StorageURL != "http://files.local:9900" {
		t.Fatalf("StorageURL = %q", cfg.StorageURL)
	}
}

func TestNew_RequiresAnonKey(t *testing.T) {
	if _, err := New(Config{BaseURL: "http://localhost:8000"}); err == nil {
		t.Fatalf("New() without anon key must fail")
	}
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "ftp://example.com"} {
		if _, err := New(Config{BaseURL: raw, AnonKey: "anon"}); err == nil {
			t.Fatalf("New(%q) must fail", raw)
		}
	}
}

func TestNew_DefaultsTimeout(t *testing.T) {
	cfg, err := New(Config{BaseURL: "http://localhost:8000", AnonKey: "anon"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Fatalf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
}

func TestNew_TrimsTrailingSlashAndQuery(t *testing.T) {
	cfg, err := New(Config{BaseURL: "http://localhost:8000/?x=1", AnonKey: "anon"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.BaseURL != "http://localhost:8000" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL)
	}
}

func TestUpdateHeaders_MergesAndOverwrites(t *testing.T) {
	cfg, err := New(Config{
		BaseURL: "http://localhost:8000",
		AnonKey: "anon",
		Headers: map[string]string{"X-Client-Info": "basehub-go", "X-Keep": "1"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cfg.UpdateHeaders(map[string]string{"X-Client-Info": "override", "X-New": "2"})
	if cfg.Headers["X-Client-Info"] != "override" || cfg.Headers["X-Keep"] != "1" || cfg.Headers["X-New"] != "2" {
		t.Fatalf("Headers = %#v", cfg.Headers)
	}
}

func TestFromEnv_ReadsEnvironment(t *testing.T) {
	t.Setenv("BASEHUB_URL", "http://localhost:8000")
	t.Setenv("BASEHUB_ANON_KEY", "anon-env")
	t.Setenv("BASEHUB_TIMEOUT_MS", "2500")
	t.Setenv("BASEHUB_STORAGE_URL", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.BaseURL != "http://localhost:8000" || cfg.AnonKey != "anon-env" {
		t.Fatalf("cfg = %#v", cfg)
	}
	if cfg.Timeout != 2500*time.Millisecond {
		t.Fatalf("Timeout = %v", cfg.Timeout)
	}
	if cfg.StorageURL != "http://localhost:8001" {
		t.Fatalf("StorageURL = %q", cfg.StorageURL)
	}
}
