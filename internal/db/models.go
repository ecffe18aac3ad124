package db

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a linked Spotify account for a user.
// At most one account exists per user.
type Account struct {
	UserID         uuid.UUID
	SpotifyUserID  string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time // nullable
	LastSyncAt     *time.Time // nullable
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PlayEvent represents one track play from the listening history.
// The (user_id, track_id, played_at) triple is unique; re-syncing the
// same window never double counts.
type PlayEvent struct {
	UserID      uuid.UUID
	TrackID     string
	TrackName   string
	ArtistNames []string // ordered, first is the primary artist
	PlayedAt    time.Time
	Genres      []string // lowercase tags
}

// GenreStat is a per-user, per-period genre aggregate.
type GenreStat struct {
	UserID          uuid.UUID
	GenreName       string
	RawCount        int
	NormalizedScore float64
	PeriodStart     time.Time
	PeriodEnd       time.Time
}

// Style is a catalog entry describing a recommendable style.
type Style struct {
	ID            uuid.UUID
	Name          string
	Description   string
	Tags          []string
	ExampleImages []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GenreStyleWeight is an edge between a genre and a style.
// Weight is in [0, 1].
type GenreStyleWeight struct {
	GenreName string
	StyleID   uuid.UUID
	Weight    float64
}
