package handlers

import (
	"net/http"

	"sparkline-service/internal/application/dto"
	"sparkline-service/internal/domain/interfaces"
)

// HealthHandler maneja los endpoints de health check
type HealthHandler struct {
	service interfaces.SparklineService
	feed    FeedStatus
}

// NewHealthHandler crea una nueva instancia del health handler; feed puede ser nil
func NewHealthHandler(service interfaces.SparklineService, feed FeedStatus) *HealthHandler {
	return &HealthHandler{service: service, feed: feed}
}

// Health responde rápido sin revisar dependencias
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"service": "running",
	}

	writeJSONResponse(w, http.StatusOK, dto.NewHealthResponse("healthy", services))
}

// Ready reports whether the service can serve traffic. The persistent tier
// and the live feed are optional, so they degrade the status without failing it.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	stats := h.service.Stats()
	services := map[string]string{
		"service":      "ready",
		"memory_cache": "ready",
	}
	status := "ready"

	if stats.PersistentReady {
		services["persistent_cache"] = "ready"
	} else {
		services["persistent_cache"] = "unavailable"
		status = "degraded"
	}

	if h.feed != nil {
		if h.feed.IsConnected() {
			services["live_feed"] = "connected"
		} else {
			services["live_feed"] = "disconnected"
			status = "degraded"
		}
	}

	writeJSONResponse(w, http.StatusOK, dto.NewHealthResponse(status, services))
}
