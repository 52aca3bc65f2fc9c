package logging

import (
	"context"
	"time"
)

// Logger define la interfaz principal para logging estructurado
type Logger interface {
	Debug(ctx context.Context, message string, fields Fields)
	Info(ctx context.Context, message string, fields Fields)
	Warn(ctx context.Context, message string, fields Fields)
	Error(ctx context.Context, message string, fields Fields)

	InfoWithError(ctx context.Context, message string, err error, fields Fields)
	WarnWithError(ctx context.Context, message string, err error, fields Fields)
	ErrorWithError(ctx context.Context, message string, err error, fields Fields)

	SetLevel(level LogLevel)
	GetLevel() LogLevel
}

// DomainLogger representa loggers especializados por dominio
type DomainLogger interface {
	Logger
	Domain() string
}

// HTTPLogger especializado para logs relacionados con HTTP
type HTTPLogger interface {
	DomainLogger

	RequestReceived(ctx context.Context, method, path, userAgent, remoteIP string)
	RequestCompleted(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// ExternalAPILogger especializado para logs de APIs externas
type ExternalAPILogger interface {
	DomainLogger

	RequestStarted(ctx context.Context, service, endpoint, method string)
	RequestCompleted(ctx context.Context, service, endpoint string, statusCode int, duration time.Duration)
	RequestFailed(ctx context.Context, service, endpoint string, statusCode int, err error, duration time.Duration)
	RetryScheduled(ctx context.Context, service string, attempt uint, delay time.Duration, err error)
}

// CacheLogger especializado para los dos tiers de cache
type CacheLogger interface {
	DomainLogger

	Hit(ctx context.Context, tier, key, operation string)
	Miss(ctx context.Context, tier, key, operation string)
	Set(ctx context.Context, tier, key string, ttl time.Duration)
	Evicted(ctx context.Context, tier, reason string, count int)
	CacheError(ctx context.Context, tier, operation, key string, err error)
}

// SparklineLogger especializado para el orquestador de fetches
type SparklineLogger interface {
	DomainLogger

	Enqueued(ctx context.Context, key, source string, queueDepth int)
	Fetched(ctx context.Context, key string, points int, cacheVersion uint64, duration time.Duration)
	FetchFailed(ctx context.Context, key string, err error)
	InsufficientData(ctx context.Context, key string, candles int)
	Hydrated(ctx context.Context, requested, warmed, enqueued int)
	Invalidated(ctx context.Context, reason string, refreshTrigger uint64, entries int)
	DrainPass(ctx context.Context, items, batches int, duration time.Duration)
}

// SecurityLogger especializado para logs relacionados con seguridad
type SecurityLogger interface {
	DomainLogger

	RateLimitExceeded(ctx context.Context, clientIP string, endpoint string)
	Unauthorized(ctx context.Context, clientIP string, reason string)
}
