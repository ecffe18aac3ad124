// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched counts recently-played pages fetched from Spotify.
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stylisten_spotify_pages_fetched_total",
		Help: "Total number of recently-played pages fetched",
	})

	// RateLimitRetries counts retries caused by 429 responses.
	RateLimitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stylisten_spotify_rate_limit_retries_total",
		Help: "Total number of request retries after a rate-limit response",
	})

	// ArtistLookups counts per-artist genre lookups by outcome.
	ArtistLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylisten_artist_lookups_total",
		Help: "Total number of artist genre lookups",
	}, []string{"outcome"})

	// ArtistCacheHits counts artist-genre cache hits within a sync run.
	ArtistCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stylisten_artist_cache_hits_total",
		Help: "Total number of artist genre cache hits",
	})

	// TokenRefreshes counts refresh-token exchanges by outcome.
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylisten_token_refreshes_total",
		Help: "Total number of access token refresh exchanges",
	}, []string{"outcome"})

	// ProfilesGenerated counts completed profile generations.
	ProfilesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stylisten_profiles_generated_total",
		Help: "Total number of profiles generated",
	})

	// SyncDuration tracks the wall time of the sync phase.
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stylisten_sync_duration_seconds",
		Help:    "Duration of the listening-history sync phase in seconds",
		Buckets: prometheus.DefBuckets,
	})
)
