package genres

import (
	"sort"
	"strings"
)

// Play is one track play with its resolved genre tags.
type Play struct {
	TrackID string
	Genres  []string
}

// Stat is a genre's aggregate over a period. Score is the raw count
// rescaled so the most-played genre of the period scores exactly 10.
type Stat struct {
	Genre    string
	RawCount int
	Score    float64
}

// Aggregate folds plays into a normalized genre histogram. Each play
// increments every one of its distinct genres by one, regardless of how
// many artists contributed the tag. An empty histogram yields an empty
// slice. Output order is not significant; callers sort via TopN.
func Aggregate(plays []Play) []Stat {
	counts := make(map[string]int)

	for _, p := range plays {
		seen := make(map[string]struct{}, len(p.Genres))
		for _, g := range p.Genres {
			g = strings.ToLower(strings.TrimSpace(g))
			if g == "" {
				continue
			}
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			counts[g]++
		}
	}

	if len(counts) == 0 {
		return nil
	}

	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	stats := make([]Stat, 0, len(counts))
	for genre, count := range counts {
		stats = append(stats, Stat{
			Genre:    genre,
			RawCount: count,
			Score:    10.0 * float64(count) / float64(maxCount),
		})
	}
	return stats
}

// TopN sorts stats by score descending, ties broken by genre name
// ascending so ranking is deterministic, and returns the first n.
func TopN(stats []Stat, n int) []Stat {
	sorted := make([]Stat, len(stats))
	copy(sorted, stats)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Genre < sorted[j].Genre
	})

	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
