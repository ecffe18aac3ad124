package spotify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/stylisten/stylisten/internal/metrics"
)

// DefaultMaxItems bounds how many plays a single history fetch will
// accumulate regardless of remaining pages.
const DefaultMaxItems = 1000

// RecentlyPlayed fetches the user's play history after the given
// instant, following the provider's next-page cursors until the history
// is exhausted or maxItems plays have been accumulated. Hitting the cap
// is not an error; the accumulated plays are returned.
//
// Pages are fetched strictly in cursor order. Items with an unparsable
// played_at timestamp are skipped with a warning.
func (c *Client) RecentlyPlayed(ctx context.Context, accessToken string, after time.Time, pageSize, maxItems int) ([]PlayHistoryItem, error) {
	if pageSize <= 0 || pageSize > 50 {
		pageSize = 50
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	params := url.Values{
		"limit": {strconv.Itoa(pageSize)},
	}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.UnixMilli(), 10))
	}
	next := c.baseURL + "/me/player/recently-played?" + params.Encode()

	var items []PlayHistoryItem

	for next != "" {
		var page recentlyPlayedResponse
		if err := c.getJSON(ctx, next, accessToken, &page); err != nil {
			return nil, fmt.Errorf("fetching recently played: %w", err)
		}
		metrics.PagesFetched.Inc()

		for _, raw := range page.Items {
			playedAt, err := time.Parse(time.RFC3339, raw.PlayedAt)
			if err != nil {
				c.log.Warn("skipping play with invalid timestamp",
					slog.String("track_id", raw.Track.ID),
					slog.String("played_at", raw.PlayedAt))
				continue
			}
			items = append(items, PlayHistoryItem{
				Track:    raw.Track,
				PlayedAt: playedAt,
			})
			if len(items) >= maxItems {
				c.log.Warn("play history item cap reached, stopping pagination",
					slog.Int("cap", maxItems))
				return items, nil
			}
		}

		// The next cursor is an opaque provider URL, honored verbatim.
		next = page.Next
	}

	return items, nil
}
