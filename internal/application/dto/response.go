package dto

import (
	"time"

	"sparkline-service/internal/domain/interfaces"
)

// PointData is one sample of a sparkline
type PointData struct {
	Timestamp int64   `json:"t"`
	Value     float64 `json:"v"`
}

// SparklineData is the serialized form of one series
type SparklineData struct {
	Key           string      `json:"key"`
	Symbol        string      `json:"symbol"`
	MarketType    string      `json:"market_type"`
	Points        []PointData `json:"points"`
	IsPositive    bool        `json:"is_positive"`
	LastUpdated   int64       `json:"last_updated"`
	LastUpdatedAt string      `json:"last_updated_at,omitempty"`
	AgeMs         int64       `json:"age_ms"`
	Stale         bool        `json:"stale"`
	HasLivePoint  bool        `json:"has_live_point,omitempty"`
}

// PendingResponse se devuelve con 202 cuando todavía no hay datos en memoria
type PendingResponse struct {
	Key          string `json:"key"`
	Status       string `json:"status"`
	CacheVersion uint64 `json:"cache_version"`
}

// SparklineListResponse answers the list endpoint. Pending keys are being
// loaded in background and should be requested again after cache_version moves.
type SparklineListResponse struct {
	Sparklines   []SparklineData `json:"sparklines"`
	Pending      []string        `json:"pending,omitempty"`
	CacheVersion uint64          `json:"cache_version"`
}

// AcceptedResponse acknowledges background work
type AcceptedResponse struct {
	Message    string   `json:"message"`
	MarketType string   `json:"market_type,omitempty"`
	Symbols    []string `json:"symbols,omitempty"`
}

// LifecycleResponse reports the outcome of a lifecycle transition
type LifecycleResponse struct {
	Event          string `json:"event"`
	Invalidated    bool   `json:"invalidated"`
	RefreshTrigger uint64 `json:"refresh_trigger"`
	Paused         bool   `json:"paused"`
}

// StatusResponse exposes orchestrator state for operators
type StatusResponse struct {
	Sparklines interfaces.SparklineStats `json:"sparklines"`
	Pending    []string                  `json:"pending,omitempty"`
	LiveFeed   map[string]interface{}    `json:"live_feed,omitempty"`
	RateLimit  map[string]interface{}    `json:"rate_limit,omitempty"`
	Timestamp  time.Time                 `json:"timestamp"`
}

// ErrorResponse represents a standard error response for endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// HealthResponse represents the health check response with service status
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// NewErrorResponseWithCode creates an error response with code
func NewErrorResponseWithCode(error string, message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:   error,
		Message: message,
		Code:    code,
	}
}

// NewHealthResponse creates a health check response
func NewHealthResponse(status string, services map[string]string) *HealthResponse {
	return &HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
	}
}
