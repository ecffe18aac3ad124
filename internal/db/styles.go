package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StyleRepository handles style catalog and genre-weight operations.
type StyleRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a new style with its genre weights.
func (r *StyleRepository) Create(ctx context.Context, style *Style, weights []GenreStyleWeight) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO styles (id, name, description, tags, example_images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		style.ID,
		style.Name,
		style.Description,
		style.Tags,
		style.ExampleImages,
	).Scan(&style.CreatedAt, &style.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting style: %w", err)
	}

	if err := insertWeights(ctx, tx, style.ID, weights); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing style: %w", err)
	}
	return nil
}

// Update replaces a style's fields and, when weights is non-nil, its
// genre weights as well.
func (r *StyleRepository) Update(ctx context.Context, style *Style, weights []GenreStyleWeight) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE styles
		SET name = $2, description = $3, tags = $4, example_images = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		style.ID,
		style.Name,
		style.Description,
		style.Tags,
		style.ExampleImages,
	).Scan(&style.CreatedAt, &style.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating style: %w", err)
	}

	if weights != nil {
		deleteQuery := `DELETE FROM genre_style_weights WHERE style_id = $1`
		if _, err := tx.Exec(ctx, deleteQuery, style.ID); err != nil {
			return fmt.Errorf("deleting existing weights: %w", err)
		}
		if err := insertWeights(ctx, tx, style.ID, weights); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing style: %w", err)
	}
	return nil
}

// Delete removes a style. Genre weights cascade.
func (r *StyleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM styles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting style: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves a style by ID.
func (r *StyleRepository) Get(ctx context.Context, id uuid.UUID) (*Style, error) {
	query := `
		SELECT id, name, description, tags, example_images, created_at, updated_at
		FROM styles
		WHERE id = $1
	`
	var s Style
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.Name,
		&s.Description,
		&s.Tags,
		&s.ExampleImages,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying style: %w", err)
	}
	return &s, nil
}

// List retrieves all styles ordered by name.
func (r *StyleRepository) List(ctx context.Context) ([]Style, error) {
	query := `
		SELECT id, name, description, tags, example_images, created_at, updated_at
		FROM styles
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying styles: %w", err)
	}
	defer rows.Close()

	var styles []Style
	for rows.Next() {
		var s Style
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Tags, &s.ExampleImages, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning style: %w", err)
		}
		styles = append(styles, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating styles: %w", err)
	}
	return styles, nil
}

// FindWeights retrieves all genre-style edges whose genre is in the
// supplied list.
func (r *StyleRepository) FindWeights(ctx context.Context, genreNames []string) ([]GenreStyleWeight, error) {
	if len(genreNames) == 0 {
		return nil, nil
	}

	query := `
		SELECT genre_name, style_id, weight
		FROM genre_style_weights
		WHERE genre_name = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, genreNames)
	if err != nil {
		return nil, fmt.Errorf("querying genre weights: %w", err)
	}
	defer rows.Close()

	var weights []GenreStyleWeight
	for rows.Next() {
		var w GenreStyleWeight
		if err := rows.Scan(&w.GenreName, &w.StyleID, &w.Weight); err != nil {
			return nil, fmt.Errorf("scanning genre weight: %w", err)
		}
		weights = append(weights, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating genre weights: %w", err)
	}
	return weights, nil
}

// FindWeightsByGenre retrieves all edges for one genre, heaviest first.
func (r *StyleRepository) FindWeightsByGenre(ctx context.Context, genreName string) ([]GenreStyleWeight, error) {
	query := `
		SELECT genre_name, style_id, weight
		FROM genre_style_weights
		WHERE genre_name = $1
		ORDER BY weight DESC
	`
	rows, err := r.pool.Query(ctx, query, genreName)
	if err != nil {
		return nil, fmt.Errorf("querying genre weights: %w", err)
	}
	defer rows.Close()

	var weights []GenreStyleWeight
	for rows.Next() {
		var w GenreStyleWeight
		if err := rows.Scan(&w.GenreName, &w.StyleID, &w.Weight); err != nil {
			return nil, fmt.Errorf("scanning genre weight: %w", err)
		}
		weights = append(weights, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating genre weights: %w", err)
	}
	return weights, nil
}

// insertWeights bulk-inserts genre weights for a style.
func insertWeights(ctx context.Context, tx pgx.Tx, styleID uuid.UUID, weights []GenreStyleWeight) error {
	if len(weights) == 0 {
		return nil
	}

	query := `
		INSERT INTO genre_style_weights (genre_name, style_id, weight)
		SELECT * FROM unnest($1::text[], $2::uuid[], $3::float8[])
		ON CONFLICT (genre_name, style_id) DO UPDATE SET
			weight = EXCLUDED.weight
	`

	genreNames := make([]string, len(weights))
	styleIDs := make([]uuid.UUID, len(weights))
	values := make([]float64, len(weights))

	for i, w := range weights {
		genreNames[i] = w.GenreName
		styleIDs[i] = styleID
		values[i] = w.Weight
	}

	if _, err := tx.Exec(ctx, query, genreNames, styleIDs, values); err != nil {
		return fmt.Errorf("inserting genre weights: %w", err)
	}
	return nil
}
