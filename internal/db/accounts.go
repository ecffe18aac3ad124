package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository handles linked Spotify account operations.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves the account linked to a user.
// Returns ErrNotFound if the user has no linked account.
func (r *AccountRepository) Get(ctx context.Context, userID uuid.UUID) (*Account, error) {
	query := `
		SELECT user_id, spotify_user_id, access_token, refresh_token,
		       token_expires_at, last_sync_at, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
	`
	var a Account
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&a.UserID,
		&a.SpotifyUserID,
		&a.AccessToken,
		&a.RefreshToken,
		&a.TokenExpiresAt,
		&a.LastSyncAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &a, nil
}

// Upsert creates or replaces the account for a user. The user_id key
// enforces at most one linked account per user.
func (r *AccountRepository) Upsert(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (user_id, spotify_user_id, access_token, refresh_token,
		                      token_expires_at, last_sync_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			spotify_user_id = EXCLUDED.spotify_user_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		account.UserID,
		account.SpotifyUserID,
		account.AccessToken,
		account.RefreshToken,
		account.TokenExpiresAt,
		account.LastSyncAt,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting account: %w", err)
	}
	return nil
}

// UpdateTokens replaces the token pair after a refresh exchange.
func (r *AccountRepository) UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE accounts
		SET access_token = $2, refresh_token = $3, token_expires_at = $4, updated_at = NOW()
		WHERE user_id = $1
	`
	result, err := r.pool.Exec(ctx, query, userID, accessToken, refreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("updating tokens: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastSync records a successful sync.
func (r *AccountRepository) UpdateLastSync(ctx context.Context, userID uuid.UUID, syncTime time.Time) error {
	query := `
		UPDATE accounts
		SET last_sync_at = $2, updated_at = NOW()
		WHERE user_id = $1
	`
	result, err := r.pool.Exec(ctx, query, userID, syncTime)
	if err != nil {
		return fmt.Errorf("updating last sync: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
