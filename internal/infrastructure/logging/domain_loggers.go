package logging

import (
	"context"
	"time"
)

// BaseDomainLogger implementa funcionalidad común para loggers de dominio
type BaseDomainLogger struct {
	Logger
	domain string
}

func newBase(baseLogger Logger, domain string) *BaseDomainLogger {
	return &BaseDomainLogger{Logger: baseLogger, domain: domain}
}

func (dl *BaseDomainLogger) Domain() string {
	return dl.domain
}

func (dl *BaseDomainLogger) tag(fields Fields) Fields {
	tagged := copyFields(fields)
	if tagged == nil {
		tagged = make(Fields, 1)
	}
	tagged[FieldDomain] = dl.domain
	return tagged
}

func (dl *BaseDomainLogger) logAt(ctx context.Context, level LogLevel, message string, fields Fields) {
	switch level {
	case LevelDebug:
		dl.Logger.Debug(ctx, message, dl.tag(fields))
	case LevelWarn:
		dl.Logger.Warn(ctx, message, dl.tag(fields))
	case LevelError:
		dl.Logger.Error(ctx, message, dl.tag(fields))
	default:
		dl.Logger.Info(ctx, message, dl.tag(fields))
	}
}

func (dl *BaseDomainLogger) Debug(ctx context.Context, message string, fields Fields) {
	dl.logAt(ctx, LevelDebug, message, fields)
}

func (dl *BaseDomainLogger) Info(ctx context.Context, message string, fields Fields) {
	dl.logAt(ctx, LevelInfo, message, fields)
}

func (dl *BaseDomainLogger) Warn(ctx context.Context, message string, fields Fields) {
	dl.logAt(ctx, LevelWarn, message, fields)
}

func (dl *BaseDomainLogger) Error(ctx context.Context, message string, fields Fields) {
	dl.logAt(ctx, LevelError, message, fields)
}

func (dl *BaseDomainLogger) InfoWithError(ctx context.Context, message string, err error, fields Fields) {
	dl.Logger.InfoWithError(ctx, message, err, dl.tag(fields))
}

func (dl *BaseDomainLogger) WarnWithError(ctx context.Context, message string, err error, fields Fields) {
	dl.Logger.WarnWithError(ctx, message, err, dl.tag(fields))
}

func (dl *BaseDomainLogger) ErrorWithError(ctx context.Context, message string, err error, fields Fields) {
	dl.Logger.ErrorWithError(ctx, message, err, dl.tag(fields))
}

func levelForStatus(statusCode int) LogLevel {
	switch {
	case statusCode >= 500:
		return LevelError
	case statusCode >= 400:
		return LevelWarn
	default:
		return LevelInfo
	}
}

// HTTPDomainLogger especializado para logs HTTP
type HTTPDomainLogger struct {
	*BaseDomainLogger
}

func NewHTTPLogger(baseLogger Logger) HTTPLogger {
	return &HTTPDomainLogger{BaseDomainLogger: newBase(baseLogger, "http")}
}

func (hl *HTTPDomainLogger) RequestReceived(ctx context.Context, method, path, userAgent, remoteIP string) {
	fields := NewFieldBuilder().
		WithHTTPInfo(method, path, 0).
		WithUserAgent(userAgent).
		WithRemoteIP(remoteIP).
		Build()

	hl.Debug(ctx, "HTTP request received", fields)
}

func (hl *HTTPDomainLogger) RequestCompleted(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	fields := NewFieldBuilder().
		WithHTTPInfo(method, path, statusCode).
		WithDuration(duration).
		Build()

	hl.logAt(ctx, levelForStatus(statusCode), "HTTP request completed", fields)
}

// ExternalAPIDomainLogger especializado para APIs externas
type ExternalAPIDomainLogger struct {
	*BaseDomainLogger
}

func NewExternalAPILogger(baseLogger Logger) ExternalAPILogger {
	return &ExternalAPIDomainLogger{BaseDomainLogger: newBase(baseLogger, "external_api")}
}

func (el *ExternalAPIDomainLogger) RequestStarted(ctx context.Context, service, endpoint, method string) {
	fields := NewFieldBuilder().
		WithCustomField(FieldExternalService, service).
		WithCustomField(FieldExternalEndpoint, endpoint).
		WithCustomField(FieldExternalMethod, method).
		Build()

	el.Debug(ctx, "External API request started", fields)
}

func (el *ExternalAPIDomainLogger) RequestCompleted(ctx context.Context, service, endpoint string, statusCode int, duration time.Duration) {
	fields := NewFieldBuilder().WithExternalAPI(service, endpoint, statusCode, duration).Build()

	// 2xx a debug: con cientos de símbolos el nivel info sería ruido
	level := levelForStatus(statusCode)
	if level == LevelInfo {
		level = LevelDebug
	}
	el.logAt(ctx, level, "External API request completed", fields)
}

func (el *ExternalAPIDomainLogger) RequestFailed(ctx context.Context, service, endpoint string, statusCode int, err error, duration time.Duration) {
	fields := NewFieldBuilder().WithExternalAPI(service, endpoint, statusCode, duration).Build()

	el.WarnWithError(ctx, "External API request failed", err, fields)
}

func (el *ExternalAPIDomainLogger) RetryScheduled(ctx context.Context, service string, attempt uint, delay time.Duration, err error) {
	fields := NewFieldBuilder().
		WithCustomField(FieldExternalService, service).
		WithCustomField(FieldAttempt, attempt).
		WithCustomField(FieldRetryDelay, delay.Milliseconds()).
		Build()

	el.WarnWithError(ctx, "Rate limited, retrying with backoff", err, fields)
}

// CacheDomainLogger especializado para cache
type CacheDomainLogger struct {
	*BaseDomainLogger
}

func NewCacheLogger(baseLogger Logger) CacheLogger {
	return &CacheDomainLogger{BaseDomainLogger: newBase(baseLogger, "cache")}
}

func (cl *CacheDomainLogger) Hit(ctx context.Context, tier, key, operation string) {
	cl.Debug(ctx, "Cache hit", NewFieldBuilder().WithCache(tier, operation, key, true).Build())
}

func (cl *CacheDomainLogger) Miss(ctx context.Context, tier, key, operation string) {
	cl.Debug(ctx, "Cache miss", NewFieldBuilder().WithCache(tier, operation, key, false).Build())
}

func (cl *CacheDomainLogger) Set(ctx context.Context, tier, key string, ttl time.Duration) {
	fields := NewFieldBuilder().
		WithCustomField(FieldCacheTier, tier).
		WithCustomField(FieldCacheKey, key).
		WithCustomField(FieldCacheOperation, CacheOpSet).
		WithCustomField(FieldCacheTTL, ttl.Seconds()).
		Build()

	cl.Debug(ctx, "Cache set", fields)
}

func (cl *CacheDomainLogger) Evicted(ctx context.Context, tier, reason string, count int) {
	fields := NewFieldBuilder().
		WithCustomField(FieldCacheTier, tier).
		WithCustomField(FieldCacheOperation, CacheOpEvict).
		WithCustomField(FieldReason, reason).
		WithCustomField(FieldEvicted, count).
		Build()

	cl.Debug(ctx, "Cache entries evicted", fields)
}

// CacheError se registra como warning: los errores de cache nunca son fatales
func (cl *CacheDomainLogger) CacheError(ctx context.Context, tier, operation, key string, err error) {
	fields := NewFieldBuilder().
		WithCustomField(FieldCacheTier, tier).
		WithCustomField(FieldCacheOperation, operation).
		WithCustomField(FieldCacheKey, key).
		Build()

	cl.WarnWithError(ctx, "Cache operation failed", err, fields)
}

// SparklineDomainLogger especializado para el orquestador de sparklines
type SparklineDomainLogger struct {
	*BaseDomainLogger
}

func NewSparklineLogger(baseLogger Logger) SparklineLogger {
	return &SparklineDomainLogger{BaseDomainLogger: newBase(baseLogger, "sparkline")}
}

func (sl *SparklineDomainLogger) Enqueued(ctx context.Context, key, source string, queueDepth int) {
	fields := NewFieldBuilder().
		WithCustomField(FieldCacheKey, key).
		WithCustomField(FieldSource, source).
		WithCustomField(FieldQueueDepth, queueDepth).
		Build()

	sl.Debug(ctx, "Sparkline fetch queued", fields)
}

func (sl *SparklineDomainLogger) Fetched(ctx context.Context, key string, points int, cacheVersion uint64, duration time.Duration) {
	fields := NewFieldBuilder().
		WithCustomField(FieldCacheKey, key).
		WithCustomField(FieldPoints, points).
		WithCustomField(FieldCacheVersion, cacheVersion).
		WithDuration(duration).
		Build()

	sl.Debug(ctx, "Sparkline fetched", fields)
}

func (sl *SparklineDomainLogger) FetchFailed(ctx context.Context, key string, err error) {
	sl.WarnWithError(ctx, "Sparkline fetch failed", err, Fields{FieldCacheKey: key})
}

func (sl *SparklineDomainLogger) InsufficientData(ctx context.Context, key string, candles int) {
	fields := NewFieldBuilder().
		WithCustomField(FieldCacheKey, key).
		WithCustomField(FieldItemCount, candles).
		Build()

	sl.Debug(ctx, "Not enough candles for sparkline", fields)
}

func (sl *SparklineDomainLogger) Hydrated(ctx context.Context, requested, warmed, enqueued int) {
	fields := Fields{
		"requested": requested,
		"warmed":    warmed,
		"enqueued":  enqueued,
	}
	sl.Info(ctx, "Sparklines hydrated from persistent cache", fields)
}

func (sl *SparklineDomainLogger) Invalidated(ctx context.Context, reason string, refreshTrigger uint64, entries int) {
	fields := NewFieldBuilder().
		WithCustomField(FieldReason, reason).
		WithCustomField(FieldRefreshTrigger, refreshTrigger).
		WithCustomField(FieldItemCount, entries).
		Build()

	sl.Info(ctx, "Memory cache invalidated", fields)
}

func (sl *SparklineDomainLogger) DrainPass(ctx context.Context, items, batches int, duration time.Duration) {
	fields := NewFieldBuilder().
		WithCustomField(FieldItemCount, items).
		WithCustomField(FieldBatchCount, batches).
		WithDuration(duration).
		Build()

	sl.Debug(ctx, "Fetch queue drain pass finished", fields)
}

// SecurityDomainLogger especializado para seguridad
type SecurityDomainLogger struct {
	*BaseDomainLogger
}

func NewSecurityLogger(baseLogger Logger) SecurityLogger {
	return &SecurityDomainLogger{BaseDomainLogger: newBase(baseLogger, "security")}
}

func (sl *SecurityDomainLogger) RateLimitExceeded(ctx context.Context, clientIP string, endpoint string) {
	fields := NewFieldBuilder().
		WithCustomField(FieldClientIP, clientIP).
		WithCustomField("endpoint", endpoint).
		WithCustomField(FieldRateLimit, "exceeded").
		Build()

	sl.Warn(ctx, "Rate limit exceeded", fields)
}

func (sl *SecurityDomainLogger) Unauthorized(ctx context.Context, clientIP string, reason string) {
	fields := NewFieldBuilder().
		WithCustomField(FieldClientIP, clientIP).
		WithCustomField(FieldReason, reason).
		Build()

	sl.Warn(ctx, "Unauthorized request", fields)
}
