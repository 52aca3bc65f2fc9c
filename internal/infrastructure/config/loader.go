package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Loader handles configuration loading using Viper
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader instance
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// Load loads configuration from .env, files and environment variables
func (l *Loader) Load() (*Config, error) {
	// 1. .env before viper so AutomaticEnv sees it
	loadDotenv()

	// 2. Configure Viper
	l.setupViper()

	// 3. Read configuration
	if err := l.v.ReadInConfig(); err != nil {
		// If config.yaml doesn't exist, use only env vars and defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 4. Unmarshal over the defaults
	config := GetDefaultConfig()
	if err := l.v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	l.overrideWithEnvVars(config)

	return config, nil
}

// setupViper configures Viper to read files and env vars
func (l *Loader) setupViper() {
	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")

	l.v.AddConfigPath("./configs")
	l.v.AddConfigPath("../configs") // For when running from cmd/
	l.v.AddConfigPath(".")
	l.v.AddConfigPath("/etc/sparkline")

	// SPARKLINE_SPARKLINE_MEMORY_TTL, SPARKLINE_STORE_BACKEND, ...
	l.v.AutomaticEnv()
	l.v.SetEnvPrefix("SPARKLINE")
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.registerDefaults()
	l.bindEnvVars()
}

// registerDefaults makes every key known to viper, otherwise AutomaticEnv
// values are ignored by Unmarshal for keys missing from the yaml file.
func (l *Loader) registerDefaults() {
	d := GetDefaultConfig()
	defaults := map[string]interface{}{
		"server.port":                      d.Server.Port,
		"server.shutdown_timeout":          d.Server.ShutdownTimeout,
		"sparkline.memory_ttl":             d.Sparkline.MemoryTTL,
		"sparkline.persistent_ttl":         d.Sparkline.PersistentTTL,
		"sparkline.max_memory_entries":     d.Sparkline.MaxMemoryEntries,
		"sparkline.max_persistent_entries": d.Sparkline.MaxPersistentEntries,
		"sparkline.batch_size":             d.Sparkline.BatchSize,
		"sparkline.max_parallel_batches":   d.Sparkline.MaxParallelBatches,
		"sparkline.batch_delay":            d.Sparkline.BatchDelay,
		"sparkline.drain_retick":           d.Sparkline.DrainRetick,
		"sparkline.refresh_interval":       d.Sparkline.RefreshInterval,
		"sparkline.history_window":         d.Sparkline.HistoryWindow,
		"sparkline.candle_interval":        d.Sparkline.CandleInterval,
		"sparkline.warmup_market_type":     d.Sparkline.WarmupMarketType,
		"retry.max_retries":                d.Retry.MaxRetries,
		"retry.initial_delay":              d.Retry.InitialDelay,
		"store.backend":                    d.Store.Backend,
		"store.table":                      d.Store.Table,
		"store.redis.addr":                 d.Store.Redis.Addr,
		"store.redis.password":             d.Store.Redis.Password,
		"store.redis.db":                   d.Store.Redis.DB,
		"store.redis.key_prefix":           d.Store.Redis.KeyPrefix,
		"store.postgres.host":              d.Store.Postgres.Host,
		"store.postgres.port":              d.Store.Postgres.Port,
		"store.postgres.database":          d.Store.Postgres.Database,
		"store.postgres.user":              d.Store.Postgres.User,
		"store.postgres.password":          d.Store.Postgres.Password,
		"store.postgres.ssl_mode":          d.Store.Postgres.SSLMode,
		"exchange.hyperliquid.rest_url":    d.Exchange.Hyperliquid.RestURL,
		"exchange.hyperliquid.timeout":     d.Exchange.Hyperliquid.Timeout,
		"live_feed.enabled":                d.LiveFeed.Enabled,
		"rate_limit.enabled":               d.RateLimit.Enabled,
		"auth.enabled":                     d.Auth.Enabled,
		"auth.api_key":                     d.Auth.APIKey,
		"logging.level":                    d.Logging.Level,
		"logging.format":                   d.Logging.Format,
	}
	for key, value := range defaults {
		l.v.SetDefault(key, value)
	}
}

// bindEnvVars maps short, unprefixed environment variables to configuration keys
func (l *Loader) bindEnvVars() {
	envMappings := map[string]string{
		"server.port":                        "PORT",
		"store.backend":                      "STORE_BACKEND",
		"store.redis.addr":                   "REDIS_ADDR",
		"store.redis.password":               "REDIS_PASSWORD",
		"store.redis.db":                     "REDIS_DB",
		"store.postgres.host":                "POSTGRES_HOST",
		"store.postgres.port":                "POSTGRES_PORT",
		"store.postgres.database":            "POSTGRES_DB",
		"store.postgres.user":                "POSTGRES_USER",
		"store.postgres.password":            "POSTGRES_PASSWORD",
		"exchange.hyperliquid.rest_url":      "HYPERLIQUID_BASE_URL",
		"exchange.hyperliquid.websocket_url": "HYPERLIQUID_WS_URL",
		"sparkline.memory_ttl":               "SPARKLINE_MEMORY_TTL",
		"sparkline.persistent_ttl":           "SPARKLINE_PERSISTENT_TTL",
		"sparkline.refresh_interval":         "SPARKLINE_REFRESH_INTERVAL",
		"live_feed.enabled":                  "LIVE_FEED_ENABLED",
		"logging.level":                      "LOG_LEVEL",
		"logging.format":                     "LOG_FORMAT",
		"logging.add_source":                 "LOG_ADD_SOURCE",
		"rate_limit.capacity":                "RATE_LIMIT_CAPACITY",
		"rate_limit.refill_rate":             "RATE_LIMIT_REFILL_RATE",
		"rate_limit.enabled":                 "RATE_LIMIT_ENABLED",
		"auth.enabled":                       "AUTH_ENABLED",
		"auth.api_key":                       "API_KEY",
	}

	for configKey, envVar := range envMappings {
		_ = l.v.BindEnv(configKey, envVar)
	}
}

// overrideWithEnvVars maneja casos especiales de env vars
func (l *Loader) overrideWithEnvVars(config *Config) {
	// WARMUP_SYMBOLS como string separado por comas
	if symbolsEnv := os.Getenv("WARMUP_SYMBOLS"); symbolsEnv != "" {
		var clean []string
		for _, symbol := range strings.Split(symbolsEnv, ",") {
			if symbol = strings.TrimSpace(symbol); symbol != "" {
				clean = append(clean, symbol)
			}
		}
		if len(clean) > 0 {
			config.Sparkline.WarmupSymbols = clean
		}
	}

	if devMode := os.Getenv("DEV_MODE"); devMode == "true" || devMode == "1" {
		config.Development.DevMode = true
	}
	if debugMode := os.Getenv("DEBUG_MODE"); debugMode == "true" || debugMode == "1" {
		config.Development.DebugMode = true
	}
}

// LoadForEnvironment loads specific configuration for an environment
func (l *Loader) LoadForEnvironment(environment string) (*Config, error) {
	config, err := l.Load()
	if err != nil {
		return nil, err
	}

	if environment != "" {
		l.v.SetConfigName(fmt.Sprintf("config.%s", environment))

		if err := l.v.MergeInConfig(); err != nil {
			// Not a critical error if environment file doesn't exist
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to merge environment config: %w", err)
			}
		}

		if err := l.v.Unmarshal(config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal merged config: %w", err)
		}

		l.overrideWithEnvVars(config)
	}

	return config, nil
}

// loadDotenv reads ENV_FILE or ./.env without overriding variables already set.
// NO_DOTENV=1 disables it.
func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = godotenv.Load(envFile)
		return
	}
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// GetEnvironment determina el entorno actual desde ENV vars
func GetEnvironment() string {
	env := strings.ToLower(os.Getenv("ENV"))
	if env == "" {
		env = strings.ToLower(os.Getenv("ENVIRONMENT"))
	}
	if env == "" {
		env = "development"
	}
	return env
}
