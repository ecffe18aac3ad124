// Package styles owns the style catalog and the matcher that maps a
// genre profile onto ranked style recommendations.
package styles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/stylisten/stylisten/internal/db"
)

// MaxMatches caps how many styles a match returns.
const MaxMatches = 5

// maxExplainedGenres caps how many genres the explanation names.
const maxExplainedGenres = 3

// GenreScore is one normalized top genre feeding the matcher.
type GenreScore struct {
	Genre string
	Score float64
}

// Match is a ranked, explained style recommendation. Confidence is the
// style's summed edge weight rescaled to [0, 1] against the
// best-scoring style of the same request.
type Match struct {
	StyleID       uuid.UUID
	Name          string
	Description   string
	Tags          []string
	Confidence    float64
	MatchedGenres []string
}

// MatchSource is the catalog access the matcher needs.
type MatchSource interface {
	FindWeights(ctx context.Context, genreNames []string) ([]db.GenreStyleWeight, error)
	Get(ctx context.Context, id uuid.UUID) (*db.Style, error)
}

// Matcher ranks catalog styles against a genre profile using exact
// genre-to-style weight edges.
type Matcher struct {
	source MatchSource
	log    *slog.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(source MatchSource, log *slog.Logger) *Matcher {
	if log == nil {
		log = slog.Default()
	}
	return &Matcher{source: source, log: log}
}

// Match looks up the weight edges for the supplied genres, sums the
// matched weights per style, and returns up to MaxMatches styles by
// descending summed weight, ties broken by style name. The best style
// always has confidence 1.0. If no genre matches any edge the result
// is empty; a recommendation is never fabricated.
func (m *Matcher) Match(ctx context.Context, topGenres []GenreScore) ([]Match, error) {
	if len(topGenres) == 0 {
		return nil, nil
	}

	names := make([]string, len(topGenres))
	for i, g := range topGenres {
		names[i] = g.Genre
	}

	weights, err := m.source.FindWeights(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("finding style weights: %w", err)
	}
	if len(weights) == 0 {
		return nil, nil
	}

	scores := make(map[uuid.UUID]float64)
	matched := make(map[uuid.UUID][]string)
	for _, w := range weights {
		scores[w.StyleID] += w.Weight
		matched[w.StyleID] = append(matched[w.StyleID], w.GenreName)
	}

	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore == 0 {
		maxScore = 1.0
	}

	type scoredStyle struct {
		style *db.Style
		score float64
	}

	ranked := make([]scoredStyle, 0, len(scores))
	for id, score := range scores {
		style, err := m.source.Get(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			// Weight edge pointing at a deleted style; skip it.
			m.log.Warn("dangling genre weight", slog.String("style_id", id.String()))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading style %s: %w", id, err)
		}
		ranked = append(ranked, scoredStyle{style: style, score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].style.Name < ranked[j].style.Name
	})

	if len(ranked) > MaxMatches {
		ranked = ranked[:MaxMatches]
	}

	matches := make([]Match, len(ranked))
	for i, r := range ranked {
		genres := matched[r.style.ID]
		sort.Strings(genres)
		if len(genres) > maxExplainedGenres {
			genres = genres[:maxExplainedGenres]
		}
		matches[i] = Match{
			StyleID:       r.style.ID,
			Name:          r.style.Name,
			Description:   r.style.Description,
			Tags:          r.style.Tags,
			Confidence:    r.score / maxScore,
			MatchedGenres: genres,
		}
	}
	return matches, nil
}
