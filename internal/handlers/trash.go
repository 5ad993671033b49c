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

// TrashHandler handles trash-related HTTP requests
type TrashHandler struct {
	trashService *services.TrashService
}

// NewTrashHandler creates a new trash handler
func NewTrashHandler(trashService *services.TrashService) *TrashHandler {
	return &TrashHandler{trashService: trashService}
}

// List handles GET /api/trash
func (h *TrashHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	photos, err := h.trashService.List(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list trash")
		respondError(w, "Failed to list trash", http.StatusInternalServerError)
		return
	}

	if photos == nil {
		photos = []models.Photo{}
	}
	respondJSON(w, http.StatusOK, photos)
}

// Trash handles POST /api/photos/{id}/trash
func (h *TrashHandler) Trash(w http.ResponseWriter, r *http.Request) {
	h.setTrashed(w, r, true)
}

// Restore handles POST /api/photos/{id}/restore
func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setTrashed(w, r, false)
}

func (h *TrashHandler) setTrashed(w http.ResponseWriter, r *http.Request, trashed bool) {
	userID := middleware.GetUserID(r.Context())

	photoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "Invalid photo ID", http.StatusBadRequest)
		return
	}

	var photo *models.Photo
	if trashed {
		photo, err = h.trashService.Trash(r.Context(), photoID, userID)
	} else {
		photo, err = h.trashService.Restore(r.Context(), photoID, userID)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, "Photo not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Int64("photo_id", photoID).Msg("Failed to update trash state")
		respondError(w, "Failed to update trash state", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, photo)
}
