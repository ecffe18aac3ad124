package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stylisten/stylisten/internal/db"
	"github.com/stylisten/stylisten/internal/styles"
)

// genreWeightRequest is one genre association on a style write.
type genreWeightRequest struct {
	Genre  string  `json:"genre"`
	Weight float64 `json:"weight"`
}

// styleRequest is the style create/update payload.
type styleRequest struct {
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	Tags          []string             `json:"tags"`
	ExampleImages []string             `json:"exampleImages"`
	GenreWeights  []genreWeightRequest `json:"genreWeights"`
}

// styleResponse is one catalog entry.
type styleResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	ExampleImages []string  `json:"exampleImages"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toStyleResponse(s *db.Style) styleResponse {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	images := s.ExampleImages
	if images == nil {
		images = []string{}
	}
	return styleResponse{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		Tags:          tags,
		ExampleImages: images,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func toStyleInput(req styleRequest) styles.StyleInput {
	var weights []styles.GenreWeightInput
	if req.GenreWeights != nil {
		weights = make([]styles.GenreWeightInput, len(req.GenreWeights))
		for i, gw := range req.GenreWeights {
			weights[i] = styles.GenreWeightInput{Genre: gw.Genre, Weight: gw.Weight}
		}
	}
	return styles.StyleInput{
		Name:          req.Name,
		Description:   req.Description,
		Tags:          req.Tags,
		ExampleImages: req.ExampleImages,
		GenreWeights:  weights,
	}
}

// ListStyles returns the whole catalog (GET /api/styles).
func (h *Handlers) ListStyles(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]styleResponse, len(list))
	for i := range list {
		out[i] = toStyleResponse(&list[i])
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"styles": out,
		"total":  len(out),
	})
}

// GetStyle returns one catalog entry (GET /api/styles/{styleID}).
func (h *Handlers) GetStyle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "styleID"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid style ID"})
		return
	}

	style, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toStyleResponse(style))
}

// CreateStyle inserts a catalog entry (POST /api/styles).
func (h *Handlers) CreateStyle(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	style, err := h.catalog.Create(r.Context(), toStyleInput(req))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toStyleResponse(style))
}

// UpdateStyle replaces a catalog entry (PUT /api/styles/{styleID}).
func (h *Handlers) UpdateStyle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "styleID"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid style ID"})
		return
	}

	var req styleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	style, err := h.catalog.Update(r.Context(), id, toStyleInput(req))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toStyleResponse(style))
}

// DeleteStyle removes a catalog entry (DELETE /api/styles/{styleID}).
func (h *Handlers) DeleteStyle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "styleID"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid style ID"})
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StylesForGenre returns the styles mapped to one genre, heaviest
// first (GET /api/genres/{genre}/styles).
func (h *Handlers) StylesForGenre(w http.ResponseWriter, r *http.Request) {
	genre := chi.URLParam(r, "genre")
	if genre == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing genre"})
		return
	}

	list, err := h.catalog.StylesForGenre(r.Context(), genre)
	if err != nil {
		h.writeError(w, err)
		return
	}

	type entry struct {
		StyleID uuid.UUID `json:"styleId"`
		Name    string    `json:"name"`
		Weight  float64   `json:"weight"`
	}
	out := make([]entry, len(list))
	for i, s := range list {
		out[i] = entry{StyleID: s.StyleID, Name: s.Name, Weight: s.Weight}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"genre":  genre,
		"styles": out,
	})
}
