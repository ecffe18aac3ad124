package web

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/stylisten/stylisten/internal/db"
)

// Connect starts the Spotify link flow for a user
// (GET /auth/spotify/connect?user_id=...). It responds with the
// provider authorization URL instead of redirecting so API clients can
// open it themselves.
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user_id"})
		return
	}

	state := h.states.Create(userID)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"authUrl": h.oauth.AuthURL(state),
	})
}

// Callback completes the link flow (GET /auth/spotify/callback). It
// validates the state, exchanges the code for a token pair, and upserts
// the user's linked account.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	// A provider denial carries no code to exchange; reject it before
	// burning the single-use state.
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "spotify authorization denied: " + errMsg})
		return
	}

	state := r.URL.Query().Get("state")
	userID, ok := h.states.Consume(state)
	if !ok {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown or expired state"})
		return
	}

	token, err := h.oauth.Exchange(r.Context(), state, r)
	if err != nil {
		h.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "token exchange failed"})
		h.log.Error("token exchange failed", slog.Any("error", err))
		return
	}

	spotifyUserID, err := h.oauth.UserID(r.Context(), token)
	if err != nil {
		h.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "fetching spotify profile failed"})
		h.log.Error("fetching spotify profile failed", slog.Any("error", err))
		return
	}

	expiry := token.Expiry
	account := &db.Account{
		UserID:         userID,
		SpotifyUserID:  spotifyUserID,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: &expiry,
	}
	if err := h.database.Accounts().Upsert(r.Context(), account); err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info("spotify account linked",
		slog.String("user_id", userID.String()),
		slog.String("spotify_user_id", spotifyUserID))

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message":       "spotify linked",
		"spotifyUserId": spotifyUserID,
	})
}
