package handlers

import (
	"net/http"

	"sparkline-service/internal/application/dto"
	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/clock"
)

// FeedStatus reports the live feed connection state
type FeedStatus interface {
	IsConnected() bool
	GetReconnectionStatus() (isReconnecting bool, attemptCount int)
}

// StatsProvider exposes counters of a component, like the inbound rate limiter
type StatsProvider interface {
	Stats() map[string]interface{}
}

// LifecycleHandler maneja las transiciones foreground/background y el estado
type LifecycleHandler struct {
	service   interfaces.SparklineService
	feed      FeedStatus
	rateLimit StatsProvider
	clock     clock.Clock
}

// NewLifecycleHandler crea el handler; feed y rateLimit pueden ser nil
func NewLifecycleHandler(service interfaces.SparklineService, feed FeedStatus, rateLimit StatsProvider, clk clock.Clock) *LifecycleHandler {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &LifecycleHandler{service: service, feed: feed, rateLimit: rateLimit, clock: clk}
}

// Foreground handles POST /api/v1/lifecycle/foreground
func (h *LifecycleHandler) Foreground(w http.ResponseWriter, r *http.Request) {
	invalidated := h.service.HandleForeground(r.Context())
	h.respond(w, "foreground", invalidated)
}

// Background handles POST /api/v1/lifecycle/background
func (h *LifecycleHandler) Background(w http.ResponseWriter, r *http.Request) {
	h.service.HandleBackground(r.Context())
	h.respond(w, "background", false)
}

// Refresh handles POST /api/v1/lifecycle/refresh
func (h *LifecycleHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.service.Refresh(r.Context())
	h.respond(w, "refresh", true)
}

func (h *LifecycleHandler) respond(w http.ResponseWriter, event string, invalidated bool) {
	writeJSONResponse(w, http.StatusOK, dto.LifecycleResponse{
		Event:          event,
		Invalidated:    invalidated,
		RefreshTrigger: h.service.RefreshTrigger(),
		Paused:         h.service.Stats().Paused,
	})
}

// Status handles GET /api/v1/status
func (h *LifecycleHandler) Status(w http.ResponseWriter, r *http.Request) {
	response := dto.StatusResponse{
		Sparklines: h.service.Stats(),
		Pending:    h.service.PendingKeys(),
		Timestamp:  h.clock.Now().UTC(),
	}
	if h.feed != nil {
		reconnecting, attempts := h.feed.GetReconnectionStatus()
		response.LiveFeed = map[string]interface{}{
			"connected":          h.feed.IsConnected(),
			"reconnecting":       reconnecting,
			"reconnect_attempts": attempts,
		}
	}
	if h.rateLimit != nil {
		response.RateLimit = h.rateLimit.Stats()
	}

	writeJSONResponse(w, http.StatusOK, response)
}
