package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Sparkline   SparklineConfig   `yaml:"sparkline" mapstructure:"sparkline"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Exchange    ExchangeConfig    `yaml:"exchange" mapstructure:"exchange"`
	LiveFeed    LiveFeedConfig    `yaml:"live_feed" mapstructure:"live_feed"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	Auth        AuthConfig        `yaml:"auth" mapstructure:"auth"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Development DevelopmentConfig `yaml:"development" mapstructure:"development"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// SparklineConfig controls both cache tiers and the batch scheduler
type SparklineConfig struct {
	MemoryTTL            time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	PersistentTTL        time.Duration `yaml:"persistent_ttl" mapstructure:"persistent_ttl"`
	MaxMemoryEntries     int           `yaml:"max_memory_entries" mapstructure:"max_memory_entries"`
	MaxPersistentEntries int           `yaml:"max_persistent_entries" mapstructure:"max_persistent_entries"`
	BatchSize            int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxParallelBatches   int           `yaml:"max_parallel_batches" mapstructure:"max_parallel_batches"`
	BatchDelay           time.Duration `yaml:"batch_delay" mapstructure:"batch_delay"`
	DrainRetick          time.Duration `yaml:"drain_retick" mapstructure:"drain_retick"`
	RefreshInterval      time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`
	HistoryWindow        time.Duration `yaml:"history_window" mapstructure:"history_window"`
	CandleInterval       string        `yaml:"candle_interval" mapstructure:"candle_interval"`
	// Symbols fetched once at startup so the first list render has data
	WarmupSymbols    []string `yaml:"warmup_symbols" mapstructure:"warmup_symbols"`
	WarmupMarketType string   `yaml:"warmup_market_type" mapstructure:"warmup_market_type"`
}

// RetryConfig contains the backoff policy for rate limited upstream calls
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
}

// StoreConfig selects the persistent store engine
type StoreConfig struct {
	Backend  string         `yaml:"backend" mapstructure:"backend"`
	Table    string         `yaml:"table" mapstructure:"table"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// RedisConfig contains Redis-specific configuration
type RedisConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxConns int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// ExchangeConfig contains upstream exchange configuration
type ExchangeConfig struct {
	Hyperliquid HyperliquidConfig `yaml:"hyperliquid" mapstructure:"hyperliquid"`
}

// HyperliquidConfig contains Hyperliquid info API settings
type HyperliquidConfig struct {
	RestURL      string        `yaml:"rest_url" mapstructure:"rest_url"`
	WebSocketURL string        `yaml:"websocket_url" mapstructure:"websocket_url"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Outbound token bucket; Hyperliquid weighs candleSnapshot heavier than allMids
	RequestsCapacity   int `yaml:"requests_capacity" mapstructure:"requests_capacity"`
	RequestsRefillRate int `yaml:"requests_refill_rate" mapstructure:"requests_refill_rate"`
}

// LiveFeedConfig controls the allMids websocket subscription
type LiveFeedConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	PingInterval      time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay" mapstructure:"max_reconnect_delay"`
}

// RateLimitConfig contains inbound HTTP rate limiting configuration
type RateLimitConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	Capacity   int  `yaml:"capacity" mapstructure:"capacity"`
	RefillRate int  `yaml:"refill_rate" mapstructure:"refill_rate"`
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	Enabled     bool     `yaml:"enabled" mapstructure:"enabled"`
	APIKey      string   `yaml:"api_key" mapstructure:"api_key"`
	HeaderName  string   `yaml:"header_name" mapstructure:"header_name"`
	UnauthPaths []string `yaml:"unauth_paths" mapstructure:"unauth_paths"`
}

// LoggingConfig contains logging system configuration
type LoggingConfig struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"`
	AddSource bool   `yaml:"add_source" mapstructure:"add_source"`
}

// DevelopmentConfig contiene configuraciones para desarrollo y testing
type DevelopmentConfig struct {
	DebugMode bool `yaml:"debug_mode" mapstructure:"debug_mode"`
	DevMode   bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Sparkline: SparklineConfig{
			MemoryTTL:            30 * time.Minute,
			PersistentTTL:        24 * time.Hour,
			MaxMemoryEntries:     150,
			MaxPersistentEntries: 200,
			BatchSize:            12,
			MaxParallelBatches:   2,
			BatchDelay:           250 * time.Millisecond,
			DrainRetick:          50 * time.Millisecond,
			RefreshInterval:      15 * time.Minute,
			HistoryWindow:        24 * time.Hour,
			CandleInterval:       "15m",
			WarmupSymbols:        []string{"BTC", "ETH", "SOL", "HYPE"},
			WarmupMarketType:     "perp",
		},
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: time.Second,
		},
		Store: StoreConfig{
			Backend: "memory",
			Table:   "sparklines",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				Password:  "",
				DB:        0,
				KeyPrefix: "sparkline:",
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "sparklines",
				User:     "postgres",
				SSLMode:  "disable",
				MaxConns: 10,
				MinConns: 1,
			},
		},
		Exchange: ExchangeConfig{
			Hyperliquid: HyperliquidConfig{
				RestURL:            "https://api.hyperliquid.xyz",
				WebSocketURL:       "wss://api.hyperliquid.xyz/ws",
				Timeout:            10 * time.Second,
				RequestsCapacity:   20,
				RequestsRefillRate: 10,
			},
		},
		LiveFeed: LiveFeedConfig{
			Enabled:           true,
			PingInterval:      30 * time.Second,
			ReconnectDelay:    time.Second,
			MaxReconnectDelay: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			Capacity:   100,
			RefillRate: 10,
		},
		Auth: AuthConfig{
			Enabled:     false, // Disabled by default
			APIKey:      "",
			HeaderName:  "X-API-Key",
			UnauthPaths: []string{"/health", "/ready", "/metrics", "/swagger", "/docs"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
