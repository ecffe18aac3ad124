// Package profile orchestrates the listening-history pipeline: token
// freshness, history sync, genre aggregation, and style matching.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stylisten/stylisten/internal/db"
	"github.com/stylisten/stylisten/internal/genres"
	"github.com/stylisten/stylisten/internal/metrics"
	"github.com/stylisten/stylisten/internal/spotify"
	"github.com/stylisten/stylisten/internal/styles"
)

// Sentinel errors.
var (
	// ErrProfileNotFound is returned when the user has no linked
	// account, or no stored stats on the read-only path.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrSyncTimeout is returned when the caller deadline expires
	// mid-sync. Items persisted before expiry remain valid.
	ErrSyncTimeout = errors.New("sync deadline exceeded")
)

// AccountStore reads and updates the linked account.
type AccountStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*db.Account, error)
	UpdateLastSync(ctx context.Context, userID uuid.UUID, syncTime time.Time) error
}

// PlayStore persists and reads play events.
type PlayStore interface {
	UpsertBatch(ctx context.Context, events []db.PlayEvent) error
	FindBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]db.PlayEvent, error)
	DeleteBefore(ctx context.Context, userID uuid.UUID, cutoff time.Time) (int64, error)
}

// StatStore persists and reads genre aggregates.
type StatStore interface {
	Replace(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time, stats []db.GenreStat) error
	FindLatest(ctx context.Context, userID uuid.UUID) ([]db.GenreStat, error)
}

// TokenManager supplies a fresh access token for an account.
type TokenManager interface {
	EnsureFreshToken(ctx context.Context, account *db.Account) (string, error)
}

// SpotifyAPI is the provider surface the pipeline consumes.
type SpotifyAPI interface {
	RecentlyPlayed(ctx context.Context, accessToken string, after time.Time, pageSize, maxItems int) ([]spotify.PlayHistoryItem, error)
	Artist(ctx context.Context, accessToken, artistID string) (*spotify.Artist, error)
}

// StyleMatcher maps top genres onto ranked styles.
type StyleMatcher interface {
	Match(ctx context.Context, topGenres []styles.GenreScore) ([]styles.Match, error)
}

// GenreScore is one entry of the profile's top genres.
type GenreScore struct {
	Genre string
	Score float64
}

// Profile is the assembled pipeline result.
type Profile struct {
	UserID         uuid.UUID
	GeneratedAt    time.Time
	TopGenres      []GenreScore
	MatchingStyles []styles.Match
}

// Config bounds the pipeline.
type Config struct {
	Lookback         time.Duration // history window, default 30 days
	TopGenres        int           // genres fed to the matcher, default 5
	SyncTTL          time.Duration // max age of a sync, default 6h
	PageSize         int
	MaxItems         int
	ArtistLookupRate float64
}

// Service runs the profile pipeline. Cross-user calls are independent;
// the only shared state is the persisted store.
type Service struct {
	accounts AccountStore
	plays    PlayStore
	stats    StatStore
	tokens   TokenManager
	api      SpotifyAPI
	matcher  StyleMatcher
	cfg      Config
	now      func() time.Time
	log      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// NewService creates a profile pipeline service.
func NewService(accounts AccountStore, plays PlayStore, stats StatStore, tokens TokenManager, api SpotifyAPI, matcher StyleMatcher, cfg Config, opts ...ServiceOption) *Service {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 30 * 24 * time.Hour
	}
	if cfg.TopGenres <= 0 {
		cfg.TopGenres = 5
	}
	if cfg.SyncTTL <= 0 {
		cfg.SyncTTL = 6 * time.Hour
	}
	s := &Service{
		accounts: accounts,
		plays:    plays,
		stats:    stats,
		tokens:   tokens,
		api:      api,
		matcher:  matcher,
		cfg:      cfg,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate runs the full pipeline for a user: sync the listening
// history if it is stale or a refresh is forced, rebuild the genre
// stats for the lookback period, and match styles against the top
// genres.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, forceRefresh bool) (*Profile, error) {
	account, err := s.accounts.Get(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: no linked spotify account", ErrProfileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}

	if forceRefresh || s.syncStale(account) {
		if err := s.sync(ctx, account); err != nil {
			return nil, err
		}
	}

	now := s.now()
	periodStart := now.Add(-s.cfg.Lookback)

	events, err := s.plays.FindBetween(ctx, userID, periodStart, now)
	if err != nil {
		return nil, fmt.Errorf("loading play events: %w", err)
	}

	agg := genres.Aggregate(toPlays(events))

	// Full replace: the new set supersedes everything stored for the
	// user, never merged with or stacked next to a previous generation.
	if err := s.stats.Replace(ctx, userID, periodStart, now, toDBStats(userID, periodStart, now, agg)); err != nil {
		return nil, fmt.Errorf("saving genre stats: %w", err)
	}

	top := genres.TopN(agg, s.cfg.TopGenres)
	profile, err := s.assemble(ctx, userID, top)
	if err != nil {
		return nil, err
	}

	metrics.ProfilesGenerated.Inc()
	return profile, nil
}

// Get returns the profile from the most recent stored stats without
// syncing. Returns ErrProfileNotFound if the user has never generated
// a profile.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	stored, err := s.stats.FindLatest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading genre stats: %w", err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: no stored stats, generate first", ErrProfileNotFound)
	}

	top := make([]genres.Stat, 0, len(stored))
	for _, st := range stored {
		top = append(top, genres.Stat{
			Genre:    st.GenreName,
			RawCount: st.RawCount,
			Score:    st.NormalizedScore,
		})
	}
	top = genres.TopN(top, s.cfg.TopGenres)

	return s.assemble(ctx, userID, top)
}

// syncStale reports whether the last sync is older than the TTL.
func (s *Service) syncStale(account *db.Account) bool {
	if account.LastSyncAt == nil {
		return true
	}
	return account.LastSyncAt.Before(s.now().Add(-s.cfg.SyncTTL))
}

// sync fetches the recent history, resolves genres per play, and
// persists the events. A deadline expiring mid-sync surfaces as
// ErrSyncTimeout; already persisted events stay valid.
func (s *Service) sync(ctx context.Context, account *db.Account) error {
	timer := prometheus.NewTimer(metrics.SyncDuration)
	defer timer.ObserveDuration()

	token, err := s.tokens.EnsureFreshToken(ctx, account)
	if err != nil {
		return err
	}

	after := s.now().Add(-s.cfg.Lookback)
	items, err := s.api.RecentlyPlayed(ctx, token, after, s.cfg.PageSize, s.cfg.MaxItems)
	if err != nil {
		return s.wrapSyncErr(fmt.Errorf("fetching history: %w", err))
	}

	s.log.Info("fetched play history",
		slog.String("user_id", account.UserID.String()),
		slog.Int("items", len(items)))

	// The artist cache lives for exactly one sync run.
	resolver := genres.NewResolver(s.api, s.cfg.ArtistLookupRate, genres.WithResolverLogger(s.log))

	events := make([]db.PlayEvent, 0, len(items))
	for _, item := range items {
		tags, err := resolver.Resolve(ctx, item.Track, token)
		if err != nil {
			return s.wrapSyncErr(err)
		}
		artistNames := make([]string, len(item.Track.Artists))
		for i, a := range item.Track.Artists {
			artistNames[i] = a.Name
		}
		events = append(events, db.PlayEvent{
			UserID:      account.UserID,
			TrackID:     item.Track.ID,
			TrackName:   item.Track.Name,
			ArtistNames: artistNames,
			PlayedAt:    item.PlayedAt,
			Genres:      tags,
		})
	}

	if err := s.plays.UpsertBatch(ctx, events); err != nil {
		return s.wrapSyncErr(fmt.Errorf("saving play events: %w", err))
	}

	// Events past the lookback window never feed a profile again.
	pruned, err := s.plays.DeleteBefore(ctx, account.UserID, after)
	if err != nil {
		return s.wrapSyncErr(fmt.Errorf("pruning play events: %w", err))
	}
	if pruned > 0 {
		s.log.Info("pruned old play events",
			slog.String("user_id", account.UserID.String()),
			slog.Int64("pruned", pruned))
	}

	syncTime := s.now()
	if err := s.accounts.UpdateLastSync(ctx, account.UserID, syncTime); err != nil {
		return fmt.Errorf("updating last sync: %w", err)
	}
	account.LastSyncAt = &syncTime
	return nil
}

// wrapSyncErr maps a deadline expiry inside the sync phase onto the
// timeout taxonomy instead of silently truncating.
func (s *Service) wrapSyncErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrSyncTimeout, err)
	}
	return err
}

// assemble matches styles for the top genres and builds the result.
func (s *Service) assemble(ctx context.Context, userID uuid.UUID, top []genres.Stat) (*Profile, error) {
	scores := make([]styles.GenreScore, len(top))
	topGenres := make([]GenreScore, len(top))
	for i, g := range top {
		scores[i] = styles.GenreScore{Genre: g.Genre, Score: g.Score}
		topGenres[i] = GenreScore{Genre: g.Genre, Score: g.Score}
	}

	matches, err := s.matcher.Match(ctx, scores)
	if err != nil {
		return nil, fmt.Errorf("matching styles: %w", err)
	}
	if matches == nil {
		matches = []styles.Match{}
	}

	return &Profile{
		UserID:         userID,
		GeneratedAt:    s.now(),
		TopGenres:      topGenres,
		MatchingStyles: matches,
	}, nil
}

func toPlays(events []db.PlayEvent) []genres.Play {
	plays := make([]genres.Play, len(events))
	for i, e := range events {
		plays[i] = genres.Play{TrackID: e.TrackID, Genres: e.Genres}
	}
	return plays
}

func toDBStats(userID uuid.UUID, periodStart, periodEnd time.Time, stats []genres.Stat) []db.GenreStat {
	out := make([]db.GenreStat, len(stats))
	for i, st := range stats {
		out[i] = db.GenreStat{
			UserID:          userID,
			GenreName:       st.Genre,
			RawCount:        st.RawCount,
			NormalizedScore: st.Score,
			PeriodStart:     periodStart,
			PeriodEnd:       periodEnd,
		}
	}
	return out
}
