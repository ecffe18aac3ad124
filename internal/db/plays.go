package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayEventRepository handles play-event operations.
type PlayEventRepository struct {
	pool *pgxpool.Pool
}

// UpsertBatch inserts multiple play events efficiently. Duplicate
// (user_id, track_id, played_at) rows are ignored so re-syncing an
// overlapping window is idempotent.
func (r *PlayEventRepository) UpsertBatch(ctx context.Context, events []PlayEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO play_events (user_id, track_id, track_name, artist_names, played_at, genres)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, track_id, played_at) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(query, e.UserID, e.TrackID, e.TrackName, e.ArtistNames, e.PlayedAt, e.Genres)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch inserting play events: %w", err)
		}
	}
	return nil
}

// FindBetween retrieves a user's play events within [from, to), oldest first.
func (r *PlayEventRepository) FindBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]PlayEvent, error) {
	query := `
		SELECT user_id, track_id, track_name, artist_names, played_at, genres
		FROM play_events
		WHERE user_id = $1 AND played_at >= $2 AND played_at < $3
		ORDER BY played_at
	`
	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying play events: %w", err)
	}
	defer rows.Close()

	var events []PlayEvent
	for rows.Next() {
		var e PlayEvent
		if err := rows.Scan(&e.UserID, &e.TrackID, &e.TrackName, &e.ArtistNames, &e.PlayedAt, &e.Genres); err != nil {
			return nil, fmt.Errorf("scanning play event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating play events: %w", err)
	}
	return events, nil
}

// DeleteBefore prunes play events older than the cutoff. Returns the
// number of rows removed.
func (r *PlayEventRepository) DeleteBefore(ctx context.Context, userID uuid.UUID, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM play_events
		WHERE user_id = $1 AND played_at < $2
	`
	result, err := r.pool.Exec(ctx, query, userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning play events: %w", err)
	}
	return result.RowsAffected(), nil
}
