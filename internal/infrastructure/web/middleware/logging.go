package middleware

import (
	"net/http"
	"strings"

	"sparkline-service/internal/infrastructure/logging"
)

// maxBodyBytes es el tamaño a partir del cual una request se considera sospechosa
const maxBodyBytes = 1 << 20

var suspiciousPatterns = []string{
	"../",
	"<script",
	"select ",
	"union ",
	"drop ",
	"exec(",
	"eval(",
}

// LoggingMiddleware complements RequestTracingMiddleware with debug and
// security logging. It must run after tracing so the request ID is present.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		logging.HTTP().RequestReceived(ctx, r.Method, r.URL.Path, r.UserAgent(), getClientIP(r))
		logging.Debug(ctx, "Processing HTTP request", logging.Fields{
			"headers":        extractImportantHeaders(r),
			"query":          r.URL.RawQuery,
			"content_length": r.ContentLength,
		})

		if reason := suspiciousReason(r); reason != "" {
			logging.Security().Warn(ctx, "Suspicious request", logging.Fields{
				logging.FieldClientIP: getClientIP(r),
				logging.FieldReason:   reason,
				logging.FieldHTTPPath: r.URL.Path,
			})
		}

		next.ServeHTTP(w, r)
	})
}

// extractImportantHeaders extracts relevant headers for logging
func extractImportantHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string)
	for _, header := range []string{"Content-Type", "Accept", "Accept-Encoding", "X-Forwarded-For", "X-Real-IP"} {
		if value := r.Header.Get(header); value != "" {
			headers[header] = value
		}
	}
	return headers
}

// suspiciousReason returns why a request looks suspicious, or "" if it does not
func suspiciousReason(r *http.Request) string {
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			return "pattern:" + strings.TrimSpace(pattern)
		}
	}
	if r.ContentLength > maxBodyBytes {
		return "oversized_body"
	}
	return ""
}
