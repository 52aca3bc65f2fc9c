package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"sparkline-service/internal/infrastructure/logging"
)

// responseWriter captura el status code y el tamaño de la respuesta
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

func (rw *responseWriter) status() int {
	if rw.statusCode == 0 {
		return http.StatusOK
	}
	return rw.statusCode
}

// wrap reuses an existing wrapper so stacked middlewares share one
func wrap(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w}
}

// RequestTracingMiddleware adds a request ID and start time to the context
// and logs the completed request.
func RequestTracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := logging.GenerateRequestID()
		if incoming := r.Header.Get(logging.RequestIDHeader); incoming != "" {
			requestID = logging.RequestIDFromHeader(incoming)
		}

		startTime := time.Now()
		ctx := logging.WithRequestID(r.Context(), requestID)
		ctx = logging.WithStartTime(ctx, startTime)

		w.Header().Set(logging.RequestIDHeader, requestID)
		wrapped := wrap(w)

		r = r.WithContext(ctx)
		next.ServeHTTP(wrapped, r)

		logging.HTTP().RequestCompleted(ctx, r.Method, r.URL.Path, wrapped.status(), time.Since(startTime))
	})
}

// getClientIP extrae la IP real del cliente considerando proxies
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xRealIP := r.Header.Get("X-Real-IP"); xRealIP != "" {
		return xRealIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
