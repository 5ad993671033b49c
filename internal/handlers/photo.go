package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"photo-library-backend/internal/middleware"
	"photo-library-backend/internal/models"
	"photo-library-backend/internal/services"
)

// PhotoHandler handles photo-related HTTP requests
type PhotoHandler struct {
	photoService *services.PhotoService
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *services.PhotoService) *PhotoHandler {
	return &PhotoHandler{photoService: photoService}
}

// List handles GET /api/photos
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	snapshot, err := h.photoService.List(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list photos")
		respondError(w, "Failed to list photos", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// uploadResponse is returned by Upload. Deduplicated reports whether the
// uploaded bytes matched an already stored photo.
type uploadResponse struct {
	Photo        models.Photo `json:"photo"`
	Deduplicated bool         `json:"deduplicated"`
}

// Upload handles POST /api/photos/{name}
// Query parameters: time_created (RFC 3339), folder_name, make_public.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, "Photo name required", http.StatusBadRequest)
		return
	}

	capturedAt := time.Now()
	if raw := r.URL.Query().Get("time_created"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, "Invalid time_created parameter", http.StatusBadRequest)
			return
		}
		capturedAt = parsed
	}

	var folder *string
	if folderName := r.URL.Query().Get("folder_name"); folderName != "" {
		folder = &folderName
	}

	scope := &userID
	if r.URL.Query().Get("make_public") == "true" {
		scope = nil
	}

	photo, deduplicated, err := h.photoService.Upload(r.Context(), scope, name, folder, capturedAt, r.Body)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("Failed to store upload")
		respondError(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	if deduplicated {
		status = http.StatusOK
	}
	respondJSON(w, status, uploadResponse{Photo: photo, Deduplicated: deduplicated})
}

// Download handles GET /api/photos/{id}/file
func (h *PhotoHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	photoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "Invalid photo ID", http.StatusBadRequest)
		return
	}

	path, photo, err := h.photoService.FilePath(r.Context(), photoID, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, "Photo not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Int64("photo_id", photoID).Msg("Failed to resolve photo file")
		respondError(w, "Failed to load photo", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+photo.Name+`"`)
	http.ServeFile(w, r, path)
}

// Preview handles GET /api/photos/{id}/preview
func (h *PhotoHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	photoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "Invalid photo ID", http.StatusBadRequest)
		return
	}

	path, err := h.photoService.PreviewPath(r.Context(), photoID, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, "Photo not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Int64("photo_id", photoID).Msg("Failed to resolve preview")
		respondError(w, "Failed to load preview", http.StatusInternalServerError)
		return
	}

	http.ServeFile(w, r, path)
}

// Delete handles DELETE /api/photos/{id}
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	photoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "Invalid photo ID", http.StatusBadRequest)
		return
	}

	if err := h.photoService.Delete(r.Context(), photoID, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, "Photo not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Int64("photo_id", photoID).Msg("Failed to delete photo")
		respondError(w, "Failed to delete photo", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// moveRequest describes a move of photos to a new scope and folder
type moveRequest struct {
	PhotoIDs     []int64 `json:"photo_ids"`
	MakePublic   bool    `json:"make_public"`
	TargetFolder *string `json:"target_folder"`
}

// Move handles POST /api/photos/move
func (h *PhotoHandler) Move(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.PhotoIDs) == 0 {
		respondError(w, "photo_ids required", http.StatusBadRequest)
		return
	}

	moved, err := h.photoService.Move(r.Context(), userID, req.PhotoIDs, req.MakePublic, req.TargetFolder)
	if err != nil {
		log.Error().Err(err).Msg("Failed to move photos")
		respondError(w, "Failed to move photos", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, moved)
}

// renameFolderRequest describes a folder rename across scopes
type renameFolderRequest struct {
	SourceIsPublic   bool    `json:"source_is_public"`
	SourceFolder     string  `json:"source_folder"`
	TargetMakePublic bool    `json:"target_make_public"`
	TargetFolder     *string `json:"target_folder"`
}

// RenameFolder handles POST /api/photos/rename-folder
func (h *PhotoHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req renameFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SourceFolder == "" {
		respondError(w, "source_folder required", http.StatusBadRequest)
		return
	}

	moved, err := h.photoService.RenameFolder(r.Context(), userID, req.SourceIsPublic, req.SourceFolder, req.TargetMakePublic, req.TargetFolder)
	if err != nil {
		log.Error().Err(err).Msg("Failed to rename folder")
		respondError(w, "Failed to rename folder", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, moved)
}

// Duplicates handles GET /api/photos/duplicates
func (h *PhotoHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groups, err := h.photoService.Duplicates(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to find duplicates")
		respondError(w, "Failed to find duplicates", http.StatusInternalServerError)
		return
	}

	if groups == nil {
		groups = [][]int64{}
	}
	respondJSON(w, http.StatusOK, groups)
}
