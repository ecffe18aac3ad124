package styles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/stylisten/stylisten/internal/db"
)

// Validation errors.
var (
	ErrEmptyName     = errors.New("style name must not be empty")
	ErrInvalidWeight = errors.New("genre weight must be in [0, 1]")
)

// CatalogStore is the persistence the catalog service needs.
type CatalogStore interface {
	Create(ctx context.Context, style *db.Style, weights []db.GenreStyleWeight) error
	Update(ctx context.Context, style *db.Style, weights []db.GenreStyleWeight) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*db.Style, error)
	List(ctx context.Context) ([]db.Style, error)
	FindWeights(ctx context.Context, genreNames []string) ([]db.GenreStyleWeight, error)
	FindWeightsByGenre(ctx context.Context, genreName string) ([]db.GenreStyleWeight, error)
}

// GenreWeightInput is one genre association on a style write.
type GenreWeightInput struct {
	Genre  string
	Weight float64
}

// StyleInput carries the writable fields of a catalog entry.
type StyleInput struct {
	Name          string
	Description   string
	Tags          []string
	ExampleImages []string
	GenreWeights  []GenreWeightInput
}

// StyleForGenre pairs a style with its weight for one genre.
type StyleForGenre struct {
	StyleID uuid.UUID
	Name    string
	Weight  float64
}

// Service manages the style catalog.
type Service struct {
	store CatalogStore
}

// NewService creates a catalog service.
func NewService(store CatalogStore) *Service {
	return &Service{store: store}
}

// Create validates the input and inserts a new style with its genre
// weights. Genre names are lowercased so they join against the
// aggregated profile.
func (s *Service) Create(ctx context.Context, input StyleInput) (*db.Style, error) {
	weights, err := validateInput(&input)
	if err != nil {
		return nil, err
	}

	style := &db.Style{
		ID:            uuid.New(),
		Name:          input.Name,
		Description:   input.Description,
		Tags:          input.Tags,
		ExampleImages: input.ExampleImages,
	}
	for i := range weights {
		weights[i].StyleID = style.ID
	}

	if err := s.store.Create(ctx, style, weights); err != nil {
		return nil, fmt.Errorf("creating style: %w", err)
	}
	return style, nil
}

// Update replaces a style's fields. When the input carries genre
// weights the stored edge set is replaced wholesale; a nil weight list
// leaves the existing edges untouched.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input StyleInput) (*db.Style, error) {
	weights, err := validateInput(&input)
	if err != nil {
		return nil, err
	}
	if input.GenreWeights == nil {
		weights = nil
	}

	style := &db.Style{
		ID:            id,
		Name:          input.Name,
		Description:   input.Description,
		Tags:          input.Tags,
		ExampleImages: input.ExampleImages,
	}
	for i := range weights {
		weights[i].StyleID = id
	}

	if err := s.store.Update(ctx, style, weights); err != nil {
		return nil, err
	}
	return style, nil
}

// Delete removes a style and its genre weights.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

// Get retrieves one style.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*db.Style, error) {
	return s.store.Get(ctx, id)
}

// List retrieves the whole catalog.
func (s *Service) List(ctx context.Context) ([]db.Style, error) {
	return s.store.List(ctx)
}

// StylesForGenre returns the styles associated with one genre, heaviest
// weight first.
func (s *Service) StylesForGenre(ctx context.Context, genre string) ([]StyleForGenre, error) {
	genre = strings.ToLower(strings.TrimSpace(genre))

	edges, err := s.store.FindWeightsByGenre(ctx, genre)
	if err != nil {
		return nil, fmt.Errorf("finding styles for genre: %w", err)
	}

	out := make([]StyleForGenre, 0, len(edges))
	for _, e := range edges {
		style, err := s.store.Get(ctx, e.StyleID)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading style %s: %w", e.StyleID, err)
		}
		out = append(out, StyleForGenre{
			StyleID: style.ID,
			Name:    style.Name,
			Weight:  e.Weight,
		})
	}
	return out, nil
}

// validateInput normalizes the input in place and builds the edge list.
func validateInput(input *StyleInput) ([]db.GenreStyleWeight, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrEmptyName
	}

	weights := make([]db.GenreStyleWeight, 0, len(input.GenreWeights))
	for _, gw := range input.GenreWeights {
		if gw.Weight < 0 || gw.Weight > 1 {
			return nil, fmt.Errorf("%w: %q has weight %g", ErrInvalidWeight, gw.Genre, gw.Weight)
		}
		genre := strings.ToLower(strings.TrimSpace(gw.Genre))
		if genre == "" {
			continue
		}
		weights = append(weights, db.GenreStyleWeight{
			GenreName: genre,
			Weight:    gw.Weight,
		})
	}
	return weights, nil
}
