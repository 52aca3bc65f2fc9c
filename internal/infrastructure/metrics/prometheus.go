package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the sparkline service
var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparkline_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPResponseSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparkline_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)

	// Cache Metrics
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"tier", "operation", "result"}, // tier: memory/persistent, result: hit/miss/stale/success/error
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sparkline_cache_entries",
			Help: "Number of sparklines currently held per tier",
		},
		[]string{"tier"},
	)

	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_cache_evictions_total",
			Help: "Entries removed from a cache tier",
		},
		[]string{"tier", "reason"}, // reason: capacity/expired/clear
	)

	// External API Metrics
	ExternalAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_external_api_requests_total",
			Help: "Total number of external API requests",
		},
		[]string{"service", "endpoint", "status_code"},
	)

	ExternalAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparkline_external_api_request_duration_seconds",
			Help:    "External API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"service", "endpoint"},
	)

	ExternalAPIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_external_api_retries_total",
			Help: "Total number of retry attempts after a rate limit signal",
		},
		[]string{"service", "attempt"},
	)

	UpstreamRateLimitDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_upstream_rate_limit_drops_total",
			Help: "Upstream responses rejected with 429",
		},
		[]string{"endpoint"},
	)

	UpstreamBackoffDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparkline_upstream_backoff_duration_seconds",
			Help:    "Backoff delays applied before retrying a rate limited request",
			Buckets: []float64{0.25, 0.5, 1.0, 2.0, 4.0, 8.0, 16.0},
		},
		[]string{"attempt"},
	)

	// Orchestrator Metrics
	SparklineFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_fetches_total",
			Help: "Sparkline fetch outcomes",
		},
		[]string{"market_type", "result"}, // result: success/insufficient/error
	)

	SparklineFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sparkline_fetch_duration_seconds",
			Help:    "Duration of one sparkline fetch including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 20.0},
		},
	)

	SparklineEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_enqueued_total",
			Help: "Keys accepted into the fetch queue by source",
		},
		[]string{"source"},
	)

	SparklineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sparkline_queue_depth",
			Help: "Keys waiting in the fetch queue",
		},
	)

	SparklineInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sparkline_in_flight",
			Help: "Fetches currently running",
		},
	)

	SparklineCacheVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sparkline_cache_version",
			Help: "Monotonic counter bumped on every successful cache write",
		},
	)

	SparklineRefreshTrigger = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sparkline_refresh_trigger",
			Help: "Monotonic counter bumped on every memory invalidation",
		},
	)

	SparklineInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_invalidations_total",
			Help: "Memory cache invalidations",
		},
		[]string{"reason"}, // reason: periodic/foreground/manual
	)

	LiveMergeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_live_merge_total",
			Help: "Live tick merge outcomes",
		},
		[]string{"result"}, // result: merged/skipped/no_tick
	)

	// Rate Limiting Metrics
	RateLimitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_rate_limit_requests_total",
			Help: "Total number of requests processed by rate limiter",
		},
		[]string{"limiter", "result"}, // limiter: inbound/outbound, result: allowed/blocked/waited
	)

	// WebSocket Metrics
	WebSocketConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sparkline_websocket_connection_status",
			Help: "Live feed websocket status (1=connected, 0=disconnected)",
		},
	)

	WebSocketReconnectionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkline_websocket_reconnection_attempts_total",
			Help: "Total number of WebSocket reconnection attempts",
		},
		[]string{"reason"},
	)

	LiveTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sparkline_live_ticks_total",
			Help: "Price updates received from the live feed",
		},
	)

	// Application Metrics
	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sparkline_application_info",
			Help: "Application information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path string, statusCode int, duration float64, responseSize int64) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	if responseSize > 0 {
		HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordCacheOperation records cache operation metrics
func RecordCacheOperation(tier, operation, result string) {
	CacheOperationsTotal.WithLabelValues(tier, operation, result).Inc()
}

func UpdateCacheEntries(tier string, n int) {
	CacheEntries.WithLabelValues(tier).Set(float64(n))
}

func RecordCacheEviction(tier, reason string, n int) {
	if n > 0 {
		CacheEvictionsTotal.WithLabelValues(tier, reason).Add(float64(n))
	}
}

// RecordExternalAPICall records external API call metrics
func RecordExternalAPICall(service, endpoint string, statusCode int, duration float64) {
	ExternalAPIRequestsTotal.WithLabelValues(service, endpoint, strconv.Itoa(statusCode)).Inc()
	ExternalAPIRequestDuration.WithLabelValues(service, endpoint).Observe(duration)
}

// RecordExternalAPIRetry records a retry after a rate limit signal
func RecordExternalAPIRetry(service string, attempt uint, delaySeconds float64) {
	label := strconv.FormatUint(uint64(attempt), 10)
	ExternalAPIRetries.WithLabelValues(service, label).Inc()
	UpstreamBackoffDuration.WithLabelValues(label).Observe(delaySeconds)
}

// RecordUpstreamRateLimitDrop records requests rejected with 429
func RecordUpstreamRateLimitDrop(endpoint string) {
	UpstreamRateLimitDrops.WithLabelValues(endpoint).Inc()
}

func RecordSparklineFetch(marketType, result string, durationSeconds float64) {
	SparklineFetchesTotal.WithLabelValues(marketType, result).Inc()
	SparklineFetchDuration.Observe(durationSeconds)
}

func RecordEnqueued(source string) {
	SparklineEnqueuedTotal.WithLabelValues(source).Inc()
}

// UpdateQueueState sets the scheduler gauges in one call
func UpdateQueueState(queueDepth, inFlight int) {
	SparklineQueueDepth.Set(float64(queueDepth))
	SparklineInFlight.Set(float64(inFlight))
}

func UpdateCacheVersion(v uint64) {
	SparklineCacheVersion.Set(float64(v))
}

func RecordInvalidation(reason string, refreshTrigger uint64) {
	SparklineInvalidationsTotal.WithLabelValues(reason).Inc()
	SparklineRefreshTrigger.Set(float64(refreshTrigger))
}

func RecordLiveMerge(result string) {
	LiveMergeTotal.WithLabelValues(result).Inc()
}

// RecordRateLimitResult records rate limiting results
func RecordRateLimitResult(limiter string, allowed bool) {
	result := "blocked"
	if allowed {
		result = "allowed"
	}
	RateLimitRequestsTotal.WithLabelValues(limiter, result).Inc()
}

// RecordRateLimitWait records a caller that waited for an outbound token
func RecordRateLimitWait(limiter string) {
	RateLimitRequestsTotal.WithLabelValues(limiter, "waited").Inc()
}

func UpdateWebSocketConnectionStatus(connected bool) {
	status := 0.0
	if connected {
		status = 1.0
	}
	WebSocketConnectionStatus.Set(status)
}

func RecordWebSocketReconnectionAttempt(reason string) {
	WebSocketReconnectionAttempts.WithLabelValues(reason).Inc()
}

func RecordLiveTicks(n int) {
	LiveTicksTotal.Add(float64(n))
}

// SetApplicationInfo sets application information
func SetApplicationInfo(version, goVersion string) {
	ApplicationInfo.WithLabelValues(version, goVersion).Set(1)
}
