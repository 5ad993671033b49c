package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"photo-library-backend/internal/middleware"
	"photo-library-backend/internal/models"
	"photo-library-backend/internal/services"
)

// SyncHandler handles library synchronization requests
type SyncHandler struct {
	syncService *services.SyncService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService *services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// FullSnapshot handles GET /api/sync/full
func (h *SyncHandler) FullSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	snapshot, err := h.syncService.FullSnapshot(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build full snapshot")
		respondError(w, "Failed to load library", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// Changes handles GET /api/sync/changes?since=<cursor>
func (h *SyncHandler) Changes(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		respondError(w, "Invalid since parameter", http.StatusBadRequest)
		return
	}

	changes, err := h.syncService.IncrementalChanges(r.Context(), userID, since)
	if err != nil {
		if errors.Is(err, models.ErrResyncRequired) {
			// The client's cursor is no longer covered by the event log.
			// A 409 tells it to fall back to a full snapshot.
			w.WriteHeader(http.StatusConflict)
			return
		}
		log.Error().Err(err).Msg("Failed to load changes")
		respondError(w, "Failed to load changes", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, changes)
}
