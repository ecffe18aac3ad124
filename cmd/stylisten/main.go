// Command stylisten runs the Stylisten API server: it syncs Spotify
// listening history, derives genre profiles, and recommends styles.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/stylisten/stylisten/internal/auth"
	"github.com/stylisten/stylisten/internal/config"
	"github.com/stylisten/stylisten/internal/db"
	"github.com/stylisten/stylisten/internal/profile"
	"github.com/stylisten/stylisten/internal/spotify"
	"github.com/stylisten/stylisten/internal/styles"
	"github.com/stylisten/stylisten/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; config falls back to the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	api := spotify.NewClient(
		spotify.WithRetry(cfg.MaxRetries, cfg.BackoffBase),
		spotify.WithLogger(log),
	)

	tokens := auth.NewManager(
		database.Accounts(),
		cfg.SpotifyClientID,
		cfg.SpotifyClientSecret,
		auth.WithManagerLogger(log),
	)

	oauth := auth.NewOAuth(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.SpotifyRedirectURL)

	catalog := styles.NewService(database.Styles())
	matcher := styles.NewMatcher(database.Styles(), log)

	profiles := profile.NewService(
		database.Accounts(),
		database.Plays(),
		database.Stats(),
		tokens,
		api,
		matcher,
		profile.Config{
			Lookback:         cfg.Lookback(),
			TopGenres:        cfg.TopGenres,
			SyncTTL:          cfg.SyncTTL(),
			PageSize:         cfg.PageSize,
			MaxItems:         cfg.MaxItems,
			ArtistLookupRate: cfg.ArtistLookupRate,
		},
		profile.WithLogger(log),
	)

	server := web.NewServer(web.ServerConfig{
		Addr:     cfg.Addr,
		Database: database,
		Profiles: profiles,
		Catalog:  catalog,
		OAuth:    oauth,
		Logger:   log,
	})

	return server.Run()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
