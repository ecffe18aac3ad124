package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stylisten/stylisten/internal/auth"
	"github.com/stylisten/stylisten/internal/db"
	"github.com/stylisten/stylisten/internal/profile"
	"github.com/stylisten/stylisten/internal/spotify"
	"github.com/stylisten/stylisten/internal/styles"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	database *db.DB
	profiles *profile.Service
	catalog  *styles.Service
	oauth    *auth.OAuth
	states   *StateStore
	log      *slog.Logger
}

// NewHandlers creates a Handlers instance.
func NewHandlers(database *db.DB, profiles *profile.Service, catalog *styles.Service, oauth *auth.OAuth, log *slog.Logger) *Handlers {
	return &Handlers{
		database: database,
		profiles: profiles,
		catalog:  catalog,
		oauth:    oauth,
		states:   NewStateStore(),
		log:      log,
	}
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v as a JSON response.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encoding response", slog.Any("error", err))
	}
}

// writeError maps an error onto the response taxonomy: not-found
// conditions become 404, credential and upstream failures become 502,
// sync timeouts become 504, validation failures become 400. 5xx bodies
// carry a fixed message per condition; the underlying error text may
// hold driver or provider detail and only goes to the log.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var status int
	var msg string
	switch {
	case errors.Is(err, profile.ErrProfileNotFound), errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrAuthExpired), errors.Is(err, auth.ErrRefreshFailed):
		status = http.StatusBadGateway
		msg = "spotify authorization failed, relink the account"
	case errors.Is(err, spotify.ErrUpstream):
		status = http.StatusBadGateway
		msg = "spotify api unavailable"
	case errors.Is(err, profile.ErrSyncTimeout):
		status = http.StatusGatewayTimeout
		msg = "listening history sync timed out"
	case errors.Is(err, styles.ErrEmptyName), errors.Is(err, styles.ErrInvalidWeight):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
		msg = "internal server error"
	}
	if msg == "" {
		msg = err.Error()
	}

	if status >= 500 {
		h.log.Error("request failed", slog.Any("error", err))
	}
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// Health reports liveness and database connectivity (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.database.Ping(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"db":     err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// genreScoreResponse is one top-genre entry.
type genreScoreResponse struct {
	Genre string  `json:"genre"`
	Score float64 `json:"score"`
}

// matchingStyleResponse is one ranked style recommendation.
type matchingStyleResponse struct {
	StyleID       uuid.UUID `json:"styleId"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	Confidence    float64   `json:"confidence"`
	MatchedGenres []string  `json:"matchedGenres"`
}

// profileResponse is the assembled profile payload.
type profileResponse struct {
	UserID         uuid.UUID               `json:"userId"`
	GeneratedAt    time.Time               `json:"generatedAt"`
	TopGenres      []genreScoreResponse    `json:"topGenres"`
	MatchingStyles []matchingStyleResponse `json:"matchingStyles"`
}

func toProfileResponse(p *profile.Profile) profileResponse {
	topGenres := make([]genreScoreResponse, len(p.TopGenres))
	for i, g := range p.TopGenres {
		topGenres[i] = genreScoreResponse{Genre: g.Genre, Score: g.Score}
	}
	matches := make([]matchingStyleResponse, len(p.MatchingStyles))
	for i, m := range p.MatchingStyles {
		tags := m.Tags
		if tags == nil {
			tags = []string{}
		}
		matches[i] = matchingStyleResponse{
			StyleID:       m.StyleID,
			Name:          m.Name,
			Description:   m.Description,
			Tags:          tags,
			Confidence:    m.Confidence,
			MatchedGenres: m.MatchedGenres,
		}
	}
	return profileResponse{
		UserID:         p.UserID,
		GeneratedAt:    p.GeneratedAt,
		TopGenres:      topGenres,
		MatchingStyles: matches,
	}
}

// GenerateProfile runs the full pipeline
// (POST /api/profile/{userID}/generate?force=true).
func (h *Handlers) GenerateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user ID"})
		return
	}
	force := r.URL.Query().Get("force") == "true"

	p, err := h.profiles.Generate(r.Context(), userID, force)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// GetProfile returns the stored profile without syncing
// (GET /api/profile/{userID}).
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user ID"})
		return
	}

	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toProfileResponse(p))
}
