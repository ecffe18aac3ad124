package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GenreStatRepository handles genre aggregate operations.
type GenreStatRepository struct {
	pool *pgxpool.Pool
}

// Replace overwrites all of the user's stats with the new period's set
// in one transaction. Prior generations are never merged with or kept
// alongside the new rows: period bounds shift with every generation, so
// a period-scoped delete would strand the older sets forever.
func (r *GenreStatRepository) Replace(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time, stats []GenreStat) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deleteQuery := `
		DELETE FROM genre_stats
		WHERE user_id = $1
	`
	if _, err := tx.Exec(ctx, deleteQuery, userID); err != nil {
		return fmt.Errorf("deleting existing stats: %w", err)
	}

	if len(stats) > 0 {
		insertQuery := `
			INSERT INTO genre_stats (user_id, genre_name, raw_count, normalized_score, period_start, period_end)
			SELECT * FROM unnest($1::uuid[], $2::text[], $3::int[], $4::float8[], $5::timestamptz[], $6::timestamptz[])
		`

		userIDs := make([]uuid.UUID, len(stats))
		genreNames := make([]string, len(stats))
		rawCounts := make([]int, len(stats))
		scores := make([]float64, len(stats))
		starts := make([]time.Time, len(stats))
		ends := make([]time.Time, len(stats))

		for i, s := range stats {
			userIDs[i] = userID
			genreNames[i] = s.GenreName
			rawCounts[i] = s.RawCount
			scores[i] = s.NormalizedScore
			starts[i] = periodStart
			ends[i] = periodEnd
		}

		if _, err := tx.Exec(ctx, insertQuery, userIDs, genreNames, rawCounts, scores, starts, ends); err != nil {
			return fmt.Errorf("inserting stats: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing stats: %w", err)
	}
	return nil
}

// FindLatest retrieves the most recent stored stat set for a user,
// ordered by normalized score descending then genre name. Returns an
// empty slice if the user has no stats.
func (r *GenreStatRepository) FindLatest(ctx context.Context, userID uuid.UUID) ([]GenreStat, error) {
	query := `
		SELECT user_id, genre_name, raw_count, normalized_score, period_start, period_end
		FROM genre_stats
		WHERE user_id = $1
		  AND period_end = (SELECT MAX(period_end) FROM genre_stats WHERE user_id = $1)
		ORDER BY normalized_score DESC, genre_name
	`
	return r.queryStats(ctx, query, userID)
}

func (r *GenreStatRepository) queryStats(ctx context.Context, query string, args ...any) ([]GenreStat, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying genre stats: %w", err)
	}
	defer rows.Close()

	var stats []GenreStat
	for rows.Next() {
		var s GenreStat
		if err := rows.Scan(&s.UserID, &s.GenreName, &s.RawCount, &s.NormalizedScore, &s.PeriodStart, &s.PeriodEnd); err != nil {
			return nil, fmt.Errorf("scanning genre stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating genre stats: %w", err)
	}
	return stats, nil
}
