package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"photo-library-backend/internal/middleware"
	"photo-library-backend/internal/models"
	"photo-library-backend/internal/services"
)

// FavoriteHandler handles favorites-related HTTP requests
type FavoriteHandler struct {
	favoriteService *services.FavoriteService
}

// NewFavoriteHandler creates a new favorite handler
func NewFavoriteHandler(favoriteService *services.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{favoriteService: favoriteService}
}

// List handles GET /api/favorites
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	ids, err := h.favoriteService.List(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list favorites")
		respondError(w, "Failed to list favorites", http.StatusInternalServerError)
		return
	}

	if ids == nil {
		ids = []int64{}
	}
	respondJSON(w, http.StatusOK, ids)
}

// Add handles POST /api/favorites/{id}
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, true)
}

// Remove handles DELETE /api/favorites/{id}
func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, false)
}

func (h *FavoriteHandler) setFavorite(w http.ResponseWriter, r *http.Request, favorite bool) {
	userID := middleware.GetUserID(r.Context())

	photoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "Invalid photo ID", http.StatusBadRequest)
		return
	}

	if favorite {
		err = h.favoriteService.Add(r.Context(), photoID, userID)
	} else {
		err = h.favoriteService.Remove(r.Context(), photoID, userID)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, "Photo not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Int64("photo_id", photoID).Msg("Failed to update favorite state")
		respondError(w, "Failed to update favorite state", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
