package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"photo-library-backend/internal/models"
	"photo-library-backend/internal/services"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Create handles POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.CreateUser(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create user")
		respondError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	log.Info().Str("user_id", user.ID).Str("code", user.Code).Msg("User created")
	respondJSON(w, http.StatusCreated, user)
}

// loginRequest carries the connect code of an existing user
type loginRequest struct {
	Code string `json:"code"`
}

// Login handles POST /api/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		respondError(w, "Code required", http.StatusBadRequest)
		return
	}

	user, err := h.userService.LoginWithCode(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, "Unknown code", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("Failed to log in user")
		respondError(w, "Failed to log in", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, user)
}
