package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// HTTPMetricsMiddleware collects HTTP metrics for Prometheus
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		wrapped := &responseWriterMetrics{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		RecordHTTPRequest(r.Method, routeLabel(r), wrapped.statusCode,
			time.Since(startTime).Seconds(), wrapped.written)
	})
}

// routeLabel prefers the matched mux template; outside a router it falls
// back to normalizePath.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return normalizePath(r.URL.Path)
}

// responseWriterMetrics wraps http.ResponseWriter to capture metrics
type responseWriterMetrics struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriterMetrics) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriterMetrics) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// normalizePath collapses symbol and market path segments so label cardinality
// stays bounded no matter how many symbols are requested.
func normalizePath(path string) string {
	if path == "/" {
		return "/"
	}
	path = strings.TrimSuffix(path, "/")

	switch {
	case path == "/health", path == "/ready", path == "/metrics":
		return path
	case path == "/api/v1/sparklines":
		return "/api/v1/sparklines"
	case path == "/api/v1/sparklines/prefetch", path == "/api/v1/sparklines/hydrate":
		return path
	case strings.HasPrefix(path, "/api/v1/sparklines/"):
		return "/api/v1/sparklines/{market}/{symbol}"
	case strings.HasPrefix(path, "/api/v1/fetching/"):
		return "/api/v1/fetching/{action}"
	case strings.HasPrefix(path, "/api/v1/lifecycle/"):
		return "/api/v1/lifecycle/{state}"
	case path == "/api/v1/visibility", path == "/api/v1/status":
		return path
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	default:
		return "/unknown"
	}
}
