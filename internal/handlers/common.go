package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"photo-library-backend/internal/models"
)

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error response with the given message and status code
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, models.ErrorResponse{Error: message})
}
