package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient creates a client pointed at a test server with fast
// retry backoff.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(
		WithBaseURL(server.URL),
		WithRetry(3, 1*time.Millisecond),
	)
}

// historyPage builds a recently-played JSON page. next of "" means no
// further pages.
func historyPage(next string, trackIDs ...string) []byte {
	type item struct {
		Track    Track  `json:"track"`
		PlayedAt string `json:"played_at"`
	}
	page := struct {
		Items []item `json:"items"`
		Next  string `json:"next"`
	}{Next: next}

	for i, id := range trackIDs {
		page.Items = append(page.Items, item{
			Track: Track{
				ID:      id,
				Name:    "Track " + id,
				Artists: []Artist{{ID: "a-" + id, Name: "Artist " + id}},
			},
			PlayedAt: time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC).Format(time.RFC3339),
		})
	}

	b, _ := json.Marshal(page)
	return b
}

func TestRecentlyPlayedRetriesRateLimit(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(historyPage("", "t1", "t2"))
	})

	items, err := client.RecentlyPlayed(context.Background(), "token", time.Time{}, 50, 1000)
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("got %d items, want 2", len(items))
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("got %d requests, want 3", got)
	}
}

func TestRecentlyPlayedRetriesExhausted(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.RecentlyPlayed(context.Background(), "token", time.Time{}, 50, 1000)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("RecentlyPlayed() error = %v, want ErrUpstream", err)
	}
	// Initial attempt plus the full retry budget.
	if got := requests.Load(); got != 4 {
		t.Errorf("got %d requests, want 4", got)
	}
}

func TestRecentlyPlayedNonRetryableError(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.RecentlyPlayed(context.Background(), "token", time.Time{}, 50, 1000)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("RecentlyPlayed() error = %v, want ErrUpstream", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("got %d requests, want 1 (no retry on non-rate-limit errors)", got)
	}
}

func TestRecentlyPlayedStopsAtItemCap(t *testing.T) {
	var server *httptest.Server
	var pages atomic.Int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		n := pages.Add(1)
		ids := make([]string, 50)
		for i := range ids {
			ids[i] = fmt.Sprintf("t%d-%d", n, i)
		}
		// Always hand out another cursor; the cap must stop the loop.
		w.Write(historyPage(server.URL+"/me/player/recently-played?page=next", ids...))
	}
	server = httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)

	client := NewClient(WithBaseURL(server.URL), WithRetry(0, time.Millisecond))

	items, err := client.RecentlyPlayed(context.Background(), "token", time.Time{}, 50, 1000)
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}
	if len(items) != 1000 {
		t.Errorf("got %d items, want exactly 1000", len(items))
	}
	if got := pages.Load(); got != 20 {
		t.Errorf("fetched %d pages, want 20", got)
	}
}

func TestRecentlyPlayedFollowsCursor(t *testing.T) {
	var server *httptest.Server
	var urls []string
	handler := func(w http.ResponseWriter, r *http.Request) {
		urls = append(urls, r.URL.String())
		if r.URL.Query().Get("cursor") == "abc" {
			w.Write(historyPage("", "t3"))
			return
		}
		w.Write(historyPage(server.URL+"/me/player/recently-played?cursor=abc", "t1", "t2"))
	}
	server = httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)

	client := NewClient(WithBaseURL(server.URL))

	after := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	items, err := client.RecentlyPlayed(context.Background(), "token", after, 50, 1000)
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].Track.ID != "t1" || items[2].Track.ID != "t3" {
		t.Errorf("items out of cursor order: %v", items)
	}
	if len(urls) != 2 {
		t.Fatalf("got %d requests, want 2", len(urls))
	}
	// The second request must honor the provider cursor verbatim, not
	// reapply the original filter parameters.
	if want := "/me/player/recently-played?cursor=abc"; urls[1] != want {
		t.Errorf("second request URL = %q, want %q", urls[1], want)
	}
}

func TestRecentlyPlayedSkipsInvalidTimestamp(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"items": [
				{"track": {"id": "ok", "name": "OK", "artists": []}, "played_at": "2025-06-01T12:00:00Z"},
				{"track": {"id": "bad", "name": "Bad", "artists": []}, "played_at": "not-a-time"}
			],
			"next": ""
		}`))
	})

	items, err := client.RecentlyPlayed(context.Background(), "token", time.Time{}, 50, 1000)
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}
	if len(items) != 1 || items[0].Track.ID != "ok" {
		t.Errorf("got %v, want only the valid item", items)
	}
}

func TestRecentlyPlayedDeadlineBoundsBackoff(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	// Slow the backoff so the deadline expires during the wait.
	client.backoffBase = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.RecentlyPlayed(ctx, "token", time.Time{}, 50, 1000)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RecentlyPlayed() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestArtist(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artists/artist-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		json.NewEncoder(w).Encode(Artist{
			ID:     "artist-1",
			Name:   "Radiohead",
			Genres: []string{"art rock", "alternative rock"},
		})
	})

	artist, err := client.Artist(context.Background(), "token", "artist-1")
	if err != nil {
		t.Fatalf("Artist() error = %v", err)
	}
	if artist.Name != "Radiohead" || len(artist.Genres) != 2 {
		t.Errorf("Artist() = %+v", artist)
	}

	_, err = client.Artist(context.Background(), "token", "missing")
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("Artist(missing) error = %v, want ErrUpstream", err)
	}
}
