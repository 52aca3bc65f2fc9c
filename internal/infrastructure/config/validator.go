package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validator valida la configuración cargada
type Validator struct{}

// NewValidator crea una nueva instancia del validador
func NewValidator() *Validator {
	return &Validator{}
}

// Validate valida toda la configuración
func (v *Validator) Validate(config *Config) error {
	if err := v.validateServer(config.Server); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}

	if err := v.validateSparkline(config.Sparkline); err != nil {
		return fmt.Errorf("sparkline config validation failed: %w", err)
	}

	if err := v.validateRetry(config.Retry); err != nil {
		return fmt.Errorf("retry config validation failed: %w", err)
	}

	if err := v.validateStore(config.Store); err != nil {
		return fmt.Errorf("store config validation failed: %w", err)
	}

	if err := v.validateExchange(config.Exchange, config.LiveFeed); err != nil {
		return fmt.Errorf("exchange config validation failed: %w", err)
	}

	if err := v.validateRateLimit(config.RateLimit); err != nil {
		return fmt.Errorf("rate limit config validation failed: %w", err)
	}

	if err := v.validateAuth(config.Auth); err != nil {
		return fmt.Errorf("auth config validation failed: %w", err)
	}

	if err := v.validateLogging(config.Logging); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}

	return nil
}

// validateServer valida la configuración del servidor
func (v *Validator) validateServer(config ServerConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("invalid port: %d, must be between 1-65535", config.Port)
	}

	if config.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got: %v", config.ShutdownTimeout)
	}

	if config.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("shutdown_timeout too long: %v, max 5 minutes", config.ShutdownTimeout)
	}

	return nil
}

// validateSparkline valida TTLs, capacidades y parámetros del scheduler
func (v *Validator) validateSparkline(config SparklineConfig) error {
	if config.MemoryTTL <= 0 {
		return fmt.Errorf("memory_ttl must be positive, got: %v", config.MemoryTTL)
	}

	if config.PersistentTTL <= 0 {
		return fmt.Errorf("persistent_ttl must be positive, got: %v", config.PersistentTTL)
	}

	// El tier persistente nunca debe vencer antes que la memoria
	if config.PersistentTTL < config.MemoryTTL {
		return fmt.Errorf("persistent_ttl (%v) must be >= memory_ttl (%v)", config.PersistentTTL, config.MemoryTTL)
	}

	if config.MaxMemoryEntries <= 0 {
		return fmt.Errorf("max_memory_entries must be positive, got: %d", config.MaxMemoryEntries)
	}

	if config.MaxPersistentEntries <= 0 {
		return fmt.Errorf("max_persistent_entries must be positive, got: %d", config.MaxPersistentEntries)
	}

	if config.BatchSize <= 0 || config.BatchSize > 100 {
		return fmt.Errorf("batch_size must be between 1-100, got: %d", config.BatchSize)
	}

	if config.MaxParallelBatches <= 0 || config.MaxParallelBatches > 16 {
		return fmt.Errorf("max_parallel_batches must be between 1-16, got: %d", config.MaxParallelBatches)
	}

	if config.BatchDelay < 0 {
		return fmt.Errorf("batch_delay cannot be negative, got: %v", config.BatchDelay)
	}

	if config.DrainRetick <= 0 {
		return fmt.Errorf("drain_retick must be positive, got: %v", config.DrainRetick)
	}

	if config.RefreshInterval < time.Minute {
		return fmt.Errorf("refresh_interval too short: %v, min 1 minute", config.RefreshInterval)
	}

	if config.HistoryWindow <= 0 {
		return fmt.Errorf("history_window must be positive, got: %v", config.HistoryWindow)
	}

	validIntervals := []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "8h", "12h", "1d"}
	if !contains(validIntervals, config.CandleInterval) {
		return fmt.Errorf("invalid candle_interval: %s, must be one of: %v", config.CandleInterval, validIntervals)
	}

	if len(config.WarmupSymbols) > 0 {
		validMarkets := []string{"perp", "spot"}
		if !contains(validMarkets, config.WarmupMarketType) {
			return fmt.Errorf("invalid warmup_market_type: %s, must be one of: %v", config.WarmupMarketType, validMarkets)
		}
	}

	return nil
}

// validateRetry valida la política de reintentos
func (v *Validator) validateRetry(config RetryConfig) error {
	if config.MaxRetries < 0 || config.MaxRetries > 10 {
		return fmt.Errorf("max_retries must be between 0-10, got: %d", config.MaxRetries)
	}

	if config.InitialDelay <= 0 {
		return fmt.Errorf("initial_delay must be positive, got: %v", config.InitialDelay)
	}

	if config.InitialDelay > time.Minute {
		return fmt.Errorf("initial_delay too long: %v, max 1 minute", config.InitialDelay)
	}

	return nil
}

// validateStore valida el motor de almacenamiento persistente
func (v *Validator) validateStore(config StoreConfig) error {
	validBackends := []string{"memory", "redis", "postgres"}
	if !contains(validBackends, config.Backend) {
		return fmt.Errorf("invalid store backend: %s, must be one of: %v", config.Backend, validBackends)
	}

	if config.Table == "" {
		return fmt.Errorf("store table cannot be empty")
	}

	switch strings.ToLower(config.Backend) {
	case "redis":
		return v.validateRedis(config.Redis)
	case "postgres":
		return v.validatePostgres(config.Postgres)
	}

	return nil
}

// validateRedis valida la configuración de Redis
func (v *Validator) validateRedis(config RedisConfig) error {
	if config.Addr == "" {
		return fmt.Errorf("redis addr cannot be empty")
	}

	if !strings.Contains(config.Addr, ":") {
		return fmt.Errorf("invalid redis addr format: %s, expected host:port", config.Addr)
	}

	if config.DB < 0 || config.DB > 15 {
		return fmt.Errorf("invalid redis DB: %d, must be between 0-15", config.DB)
	}

	return nil
}

// validatePostgres valida la configuración de PostgreSQL
func (v *Validator) validatePostgres(config PostgresConfig) error {
	if config.Host == "" {
		return fmt.Errorf("postgres host cannot be empty")
	}

	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("invalid postgres port: %d", config.Port)
	}

	if config.Database == "" || config.User == "" {
		return fmt.Errorf("postgres database and user are required")
	}

	if config.MaxConns > 0 && config.MinConns > config.MaxConns {
		return fmt.Errorf("postgres min_conns (%d) exceeds max_conns (%d)", config.MinConns, config.MaxConns)
	}

	return nil
}

// validateExchange valida la configuración de Hyperliquid
func (v *Validator) validateExchange(config ExchangeConfig, feed LiveFeedConfig) error {
	hl := config.Hyperliquid

	if err := v.validateURL(hl.RestURL, "hyperliquid rest_url"); err != nil {
		return err
	}

	if feed.Enabled {
		if err := v.validateWebSocketURL(hl.WebSocketURL, "hyperliquid websocket_url"); err != nil {
			return err
		}
		if feed.ReconnectDelay <= 0 || feed.MaxReconnectDelay < feed.ReconnectDelay {
			return fmt.Errorf("live_feed reconnect delays invalid: %v / %v", feed.ReconnectDelay, feed.MaxReconnectDelay)
		}
	}

	if hl.Timeout <= 0 {
		return fmt.Errorf("hyperliquid timeout must be positive, got: %v", hl.Timeout)
	}

	if hl.RequestsCapacity <= 0 || hl.RequestsRefillRate <= 0 {
		return fmt.Errorf("hyperliquid request limiter must be positive, got capacity=%d refill=%d",
			hl.RequestsCapacity, hl.RequestsRefillRate)
	}

	return nil
}

// validateRateLimit valida la configuración de rate limiting
func (v *Validator) validateRateLimit(config RateLimitConfig) error {
	if config.Enabled {
		if config.Capacity <= 0 {
			return fmt.Errorf("rate_limit capacity must be positive when enabled, got: %d", config.Capacity)
		}

		if config.RefillRate <= 0 {
			return fmt.Errorf("rate_limit refill_rate must be positive when enabled, got: %d", config.RefillRate)
		}

		if config.Capacity > 10000 {
			return fmt.Errorf("rate_limit capacity too high: %d, max 10000", config.Capacity)
		}

		if config.RefillRate > 1000 {
			return fmt.Errorf("rate_limit refill_rate too high: %d, max 1000", config.RefillRate)
		}
	}

	return nil
}

func (v *Validator) validateAuth(config AuthConfig) error {
	if config.Enabled && config.APIKey == "" {
		return fmt.Errorf("api_key is required when auth is enabled")
	}
	if config.Enabled && config.HeaderName == "" {
		return fmt.Errorf("header_name is required when auth is enabled")
	}
	return nil
}

// validateLogging valida la configuración de logging
func (v *Validator) validateLogging(config LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, strings.ToLower(config.Level)) {
		return fmt.Errorf("invalid log level: %s, must be one of: %v", config.Level, validLevels)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, strings.ToLower(config.Format)) {
		return fmt.Errorf("invalid log format: %s, must be one of: %v", config.Format, validFormats)
	}

	return nil
}

// validateURL valida que una URL sea válida para HTTP/HTTPS
func (v *Validator) validateURL(rawURL, fieldName string) error {
	return v.validateScheme(rawURL, fieldName, "http", "https")
}

// validateWebSocketURL valida que una URL sea válida para WebSocket
func (v *Validator) validateWebSocketURL(rawURL, fieldName string) error {
	return v.validateScheme(rawURL, fieldName, "ws", "wss")
}

func (v *Validator) validateScheme(rawURL, fieldName string, schemes ...string) error {
	if rawURL == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid %s: %s, error: %v", fieldName, rawURL, err)
	}

	if !contains(schemes, parsedURL.Scheme) {
		return fmt.Errorf("invalid %s scheme: %s, must be %s", fieldName, parsedURL.Scheme, strings.Join(schemes, " or "))
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s must have a host", fieldName)
	}

	return nil
}

// contains verifica si un slice contiene un elemento
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
