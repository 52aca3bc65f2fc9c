package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"sparkline-service/internal/infrastructure/metrics"
	"sparkline-service/internal/infrastructure/web/handlers"
	"sparkline-service/internal/infrastructure/web/middleware"
)

// RouterDeps agrupa los handlers y middlewares que arma main
type RouterDeps struct {
	Sparklines *handlers.SparklineHandler
	Lifecycle  *handlers.LifecycleHandler
	Health     *handlers.HealthHandler
	Auth       *middleware.AuthMiddleware
	// RateLimit es opcional
	RateLimit mux.MiddlewareFunc
}

// NewRouter registers every endpoint. Middleware order: tracing, logging,
// metrics, auth, rate limit.
func NewRouter(deps RouterDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestTracingMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(metrics.HTTPMetricsMiddleware)
	if deps.Auth != nil {
		r.Use(deps.Auth.Handler)
	}
	if deps.RateLimit != nil {
		r.Use(deps.RateLimit)
	}

	r.HandleFunc("/health", deps.Health.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", deps.Health.Ready).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Documentation endpoints; doc.json va antes del prefijo
	r.HandleFunc("/swagger/doc.json", handlers.ServeSwaggerSpec).Methods(http.MethodGet)
	r.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.HandleFunc("/docs", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/swagger/", http.StatusMovedPermanently)
	})

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/sparklines", deps.Sparklines.ListSparklines).Methods(http.MethodGet)
	api.HandleFunc("/sparklines/prefetch", deps.Sparklines.Prefetch).Methods(http.MethodPost)
	api.HandleFunc("/sparklines/hydrate", deps.Sparklines.Hydrate).Methods(http.MethodPost)
	// symbol admite "/" para pares spot como PURR/USDC
	api.HandleFunc("/sparklines/{market}/{symbol:.+}", deps.Sparklines.GetSparkline).Methods(http.MethodGet)

	api.HandleFunc("/visibility", deps.Sparklines.SetVisibility).Methods(http.MethodPut)
	api.HandleFunc("/visibility", deps.Sparklines.ClearVisibility).Methods(http.MethodDelete)
	api.HandleFunc("/fetching/{action:pause|resume}", deps.Sparklines.SetFetching).Methods(http.MethodPost)

	api.HandleFunc("/lifecycle/foreground", deps.Lifecycle.Foreground).Methods(http.MethodPost)
	api.HandleFunc("/lifecycle/background", deps.Lifecycle.Background).Methods(http.MethodPost)
	api.HandleFunc("/lifecycle/refresh", deps.Lifecycle.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/status", deps.Lifecycle.Status).Methods(http.MethodGet)

	return r
}
