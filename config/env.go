package config

import (
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type envOptions struct {
	BaseURL    string `long:"basehub-url" env:"BASEHUB_URL" description:"Basehub base URL (e.g. https://hub.example.com:8000)"`
	StorageURL string `long:"basehub-storage-url" env:"BASEHUB_STORAGE_URL" description:"Storage service URL (derived from base URL when unset)"`
	AnonKey    string `long:"basehub-anon-key" env:"BASEHUB_ANON_KEY" description:"Anonymous API key"`
	TimeoutMS  int    `long:"basehub-timeout-ms" env:"BASEHUB_TIMEOUT_MS" description:"Request timeout in milliseconds"`
}

// FromEnv builds a Config from the process environment, loading a .env file
// first when one is present. The SDK never parses command-line arguments;
// the flag tags exist only so env defaults resolve through one struct.
func FromEnv() (Config, error) {
	_ = godotenv.Load()
	opts := envOptions{}
	parser := flags.NewParser(&opts, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(nil); err != nil {
		return Config{}, err
	}
	return New(Config{
		BaseURL:    opts.BaseURL,
		StorageURL: opts.StorageURL,
		AnonKey:    opts.AnonKey,
		Timeout:    time.Duration(opts.TimeoutMS) * time.Millisecond,
	})
}
