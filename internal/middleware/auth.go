package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"photo-library-backend/internal/models"
	"photo-library-backend/internal/services"
)

type contextKey int

const userIDKey contextKey = iota

// RequireAuth authenticates requests with a bearer JWT and stores the
// resolved user id on the request context.
func RequireAuth(users *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				reject(w, "Bearer token required")
				return
			}

			userID, err := TokenUser(token, users)
			if err != nil {
				reject(w, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the user id stored by RequireAuth, or "" for
// unauthenticated requests.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// TokenUser resolves the user id carried by a JWT. WebSocket clients cannot
// set headers during the upgrade handshake, so the upgrade handler feeds the
// token from a query parameter through the same validation.
func TokenUser(token string, users *services.UserService) (string, error) {
	if token == "" {
		return "", errors.New("token required")
	}
	return users.ValidateJWT(token)
}

// reject writes the error envelope the API handlers use.
func reject(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(models.ErrorResponse{Error: message}); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
