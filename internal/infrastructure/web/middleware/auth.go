package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"sparkline-service/internal/application/dto"
	"sparkline-service/internal/infrastructure/config"
	"sparkline-service/internal/infrastructure/logging"
)

// AuthMiddleware provides API key authentication functionality
type AuthMiddleware struct {
	config config.AuthConfig
}

// NewAuthMiddleware creates a new auth middleware instance
func NewAuthMiddleware(cfg config.AuthConfig) *AuthMiddleware {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-API-Key"
	}
	return &AuthMiddleware{config: cfg}
}

// Handler wraps the given handler with API key authentication
func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !am.config.Enabled || am.isUnauthenticatedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get(am.config.HeaderName)
		if apiKey == "" {
			am.respondWithAuthError(w, r, "API key missing", "API_KEY_MISSING")
			return
		}
		if !am.isValidAPIKey(apiKey) {
			am.respondWithAuthError(w, r, "Invalid API key", "API_KEY_INVALID")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isUnauthenticatedPath verifica si la ruta debe estar exenta de autenticación
func (am *AuthMiddleware) isUnauthenticatedPath(path string) bool {
	for _, unauthPath := range am.config.UnauthPaths {
		if path == unauthPath || strings.HasPrefix(path, strings.TrimSuffix(unauthPath, "/")+"/") {
			return true
		}
	}
	return false
}

func (am *AuthMiddleware) isValidAPIKey(providedKey string) bool {
	return subtle.ConstantTimeCompare([]byte(providedKey), []byte(am.config.APIKey)) == 1
}

// respondWithAuthError envía una respuesta de error de autenticación
func (am *AuthMiddleware) respondWithAuthError(w http.ResponseWriter, r *http.Request, message, code string) {
	logging.Security().Unauthorized(r.Context(), getClientIP(r), code)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `ApiKey header="`+am.config.HeaderName+`"`)
	w.WriteHeader(http.StatusUnauthorized)

	response := dto.NewErrorResponseWithCode("Authentication Failed", message, code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.ErrorWithError(r.Context(), "Error encoding auth error response", err, nil)
	}
}
