// Package config loads service configuration from a YAML file and
// STYLISTEN_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config contains process configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `koanf:"addr"`

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `koanf:"database_url"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Spotify application credentials.
	SpotifyClientID     string `koanf:"spotify_client_id"`
	SpotifyClientSecret string `koanf:"spotify_client_secret"`
	SpotifyRedirectURL  string `koanf:"spotify_redirect_url"`

	// HistoryDays bounds the listening-history lookback window.
	HistoryDays int `koanf:"history_days"`

	// TopGenres is how many genres feed the style matcher.
	TopGenres int `koanf:"top_genres"`

	// SyncTTLHours is the maximum age of a sync before a profile
	// generation triggers a new one.
	SyncTTLHours int `koanf:"sync_ttl_hours"`

	// PageSize is the recently-played page size (Spotify max is 50).
	PageSize int `koanf:"page_size"`

	// MaxItems caps the number of play events accumulated per sync.
	MaxItems int `koanf:"max_items"`

	// MaxRetries is how many times a rate-limited request is retried.
	MaxRetries int `koanf:"max_retries"`

	// BackoffBase is the initial retry backoff; it doubles per attempt.
	BackoffBase time.Duration `koanf:"backoff_base"`

	// ArtistLookupRate bounds artist-genre lookups in requests per second.
	ArtistLookupRate float64 `koanf:"artist_lookup_rate"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Addr:               "127.0.0.1:8080",
		LogLevel:           "info",
		SpotifyRedirectURL: "http://127.0.0.1:8080/auth/spotify/callback",
		HistoryDays:        30,
		TopGenres:          5,
		SyncTTLHours:       6,
		PageSize:           50,
		MaxItems:           1000,
		MaxRetries:         3,
		BackoffBase:        1 * time.Second,
		ArtistLookupRate:   10,
	}
}

// Load builds a Config by layering defaults, an optional YAML file, and
// environment variables. Precedence (low -> high):
//  1. Default()
//  2. file (YAML) if STYLISTEN_CONFIG is set
//  3. env (prefix STYLISTEN_)
func Load() (*Config, error) {
	cfg := Default()

	k := koanf.New(".")

	if path := os.Getenv("STYLISTEN_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// STYLISTEN_DATABASE_URL -> database_url, etc. Underscores are kept
	// to match the koanf tags on the struct.
	envProvider := env.Provider("STYLISTEN_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "stylisten_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading env: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required fields are set and bounds are sane.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.DatabaseURL == "" {
		return errors.New("database_url must not be empty")
	}
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		return errors.New("spotify_client_id and spotify_client_secret must be set")
	}
	if c.HistoryDays <= 0 {
		return errors.New("history_days must be positive")
	}
	if c.TopGenres <= 0 {
		return errors.New("top_genres must be positive")
	}
	if c.PageSize <= 0 || c.PageSize > 50 {
		return errors.New("page_size must be in 1..50")
	}
	if c.MaxItems <= 0 {
		return errors.New("max_items must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries must not be negative")
	}
	if c.BackoffBase <= 0 {
		return errors.New("backoff_base must be positive")
	}
	return nil
}

// SyncTTL returns the staleness TTL as a duration.
func (c *Config) SyncTTL() time.Duration {
	return time.Duration(c.SyncTTLHours) * time.Hour
}

// Lookback returns the history window as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.HistoryDays) * 24 * time.Hour
}
