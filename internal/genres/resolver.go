// Package genres turns raw play history into a normalized genre
// profile: per-track genre resolution and per-period aggregation.
package genres

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/stylisten/stylisten/internal/metrics"
	"github.com/stylisten/stylisten/internal/spotify"
)

// ArtistSource fetches full artist objects, including genre tags.
type ArtistSource interface {
	Artist(ctx context.Context, accessToken, artistID string) (*spotify.Artist, error)
}

// Resolver converts track payloads into genre tag sets. Artist lookups
// are cached for the lifetime of the Resolver, which is one sync run;
// runs for different users never share a cache.
type Resolver struct {
	source  ArtistSource
	limiter *rate.Limiter
	log     *slog.Logger

	mu    sync.RWMutex
	cache map[string][]string // artist ID -> lowercased genres, empty results included
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the resolver logger.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.log = log }
}

// NewResolver creates a resolver for a single sync run. lookupRate
// bounds artist lookups in requests per second to respect the upstream
// rate limit; zero or negative disables the bound.
func NewResolver(source ArtistSource, lookupRate float64, opts ...ResolverOption) *Resolver {
	limit := rate.Inf
	if lookupRate > 0 {
		limit = rate.Limit(lookupRate)
	}
	r := &Resolver{
		source:  source,
		limiter: rate.NewLimiter(limit, 1),
		log:     slog.Default(),
		cache:   make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the union of genre tags across all artists on the
// track, lowercased and sorted. Artists whose genres are embedded in
// the payload are used directly; the rest are looked up and cached.
//
// A lookup failure for one artist does not fail the call: it is logged
// and treated as zero genres. The only returned errors are context
// cancellation and deadline expiry.
func (r *Resolver) Resolve(ctx context.Context, track spotify.Track, accessToken string) ([]string, error) {
	set := make(map[string]struct{})

	for _, artist := range track.Artists {
		if len(artist.Genres) > 0 {
			addLowercased(set, artist.Genres)
			continue
		}

		genres, err := r.lookup(ctx, artist, accessToken)
		if err != nil {
			return nil, err
		}
		addLowercased(set, genres)
	}

	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

// lookup fetches an artist's genres through the per-run cache. Only
// context errors propagate; upstream failures resolve to an empty set.
func (r *Resolver) lookup(ctx context.Context, artist spotify.Artist, accessToken string) ([]string, error) {
	r.mu.RLock()
	cached, ok := r.cache[artist.ID]
	r.mu.RUnlock()
	if ok {
		metrics.ArtistCacheHits.Inc()
		return cached, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var genres []string
	full, err := r.source.Artist(ctx, accessToken, artist.ID)
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		// Soft failure: one bad artist must not abort the sync.
		metrics.ArtistLookups.WithLabelValues("error").Inc()
		r.log.Warn("artist genre lookup failed",
			slog.String("artist_id", artist.ID),
			slog.String("artist_name", artist.Name),
			slog.Any("error", err))
		genres = []string{}
	default:
		metrics.ArtistLookups.WithLabelValues("ok").Inc()
		genres = full.Genres
	}

	r.mu.Lock()
	r.cache[artist.ID] = genres
	r.mu.Unlock()
	return genres, nil
}

func addLowercased(set map[string]struct{}, genres []string) {
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g != "" {
			set[g] = struct{}{}
		}
	}
}
