package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"sparkline-service/internal/infrastructure/config"
	"sparkline-service/internal/infrastructure/logging"
	"sparkline-service/internal/infrastructure/metrics"
)

// RateLimitMiddleware limits inbound HTTP requests per client
type RateLimitMiddleware struct {
	limiter   *RateLimiterCollection
	skipPaths    map[string]bool
	skipPrefixes []string
	enabled      bool
}

// NewRateLimitMiddlewareWithConfig creates a new rate limiting middleware with configuration
func NewRateLimitMiddlewareWithConfig(rateLimitConfig config.RateLimitConfig) *RateLimitMiddleware {
	var limiter *RateLimiterCollection
	if rateLimitConfig.Enabled {
		limiter = NewRateLimiterCollection(rateLimitConfig.Capacity, rateLimitConfig.RefillRate)
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		skipPaths: map[string]bool{
			"/health":  true,
			"/ready":   true,
			"/metrics": true,
			"/docs":    true,
		},
		skipPrefixes: []string{"/swagger/"},
		enabled:      rateLimitConfig.Enabled,
	}
}

// Handler returns the HTTP middleware handler
func (rlm *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rlm.enabled || rlm.skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		clientID := getClientID(r)
		allowed := rlm.limiter.Allow(clientID)
		metrics.RecordRateLimitResult("inbound", allowed)

		if !allowed {
			logging.Security().RateLimitExceeded(r.Context(), clientID, r.URL.Path)
			writeRateLimitError(w)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rlm.limiter.Tokens(clientID)))
		next.ServeHTTP(w, r)
	})
}

// getClientID extracts a client identifier from the request
func getClientID(r *http.Request) string {
	if xForwardedFor := r.Header.Get("X-Forwarded-For"); xForwardedFor != "" {
		first, _, _ := strings.Cut(xForwardedFor, ",")
		return strings.TrimSpace(first)
	}

	if xRealIP := r.Header.Get("X-Real-IP"); xRealIP != "" {
		return xRealIP
	}

	// SplitHostPort handles bracketed IPv6 addresses
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeRateLimitError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   "RATE_LIMIT_EXCEEDED",
		"message": "Rate limit exceeded. Please slow down your requests.",
		"code":    http.StatusTooManyRequests,
		"details": map[string]interface{}{
			"retry_after_seconds": 1,
		},
	})
}

func (rlm *RateLimitMiddleware) skip(path string) bool {
	if rlm.skipPaths[path] {
		return true
	}
	for _, prefix := range rlm.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Stats returns rate limiting statistics
func (rlm *RateLimitMiddleware) Stats() map[string]interface{} {
	stats := map[string]interface{}{"enabled": rlm.enabled}
	if rlm.limiter != nil {
		for k, v := range rlm.limiter.Stats() {
			stats[k] = v
		}
	}
	return stats
}
