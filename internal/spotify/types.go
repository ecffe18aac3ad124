package spotify

import "time"

// Artist is a Spotify artist. Genres is only populated on full artist
// objects; the simplified artists embedded in track payloads usually
// omit it.
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

// Track is a Spotify track with its (possibly simplified) artists.
// The first artist is the primary one.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []Artist `json:"artists"`
}

// PlayHistoryItem is one play from the recently-played history.
type PlayHistoryItem struct {
	Track    Track
	PlayedAt time.Time
}

// recentlyPlayedResponse is the JSON response for
// GET /me/player/recently-played.
type recentlyPlayedResponse struct {
	Items []struct {
		Track    Track  `json:"track"`
		PlayedAt string `json:"played_at"`
	} `json:"items"`
	Next string `json:"next"`
}
