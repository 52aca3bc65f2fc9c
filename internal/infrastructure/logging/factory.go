package logging

import (
	"fmt"
	"os"
	"sync"
)

// LoggerFactory facilita la creación de diferentes tipos de loggers
type LoggerFactory struct {
	baseLogger Logger
}

func NewLoggerFactory(config *LoggerConfig) (*LoggerFactory, error) {
	baseLogger, err := NewStructuredLogger(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create base logger: %w", err)
	}

	return &LoggerFactory{baseLogger: baseLogger}, nil
}

// NewLoggerFactoryFromLogger envuelve un Logger existente (útil en tests)
func NewLoggerFactoryFromLogger(base Logger) *LoggerFactory {
	return &LoggerFactory{baseLogger: base}
}

func (f *LoggerFactory) GetBaseLogger() Logger {
	return f.baseLogger
}

// LoggerSet contiene todos los loggers especializados
type LoggerSet struct {
	Base        Logger
	HTTP        HTTPLogger
	ExternalAPI ExternalAPILogger
	Cache       CacheLogger
	Sparkline   SparklineLogger
	Security    SecurityLogger
}

func (f *LoggerFactory) GetLoggerSet() *LoggerSet {
	return &LoggerSet{
		Base:        f.baseLogger,
		HTTP:        NewHTTPLogger(f.baseLogger),
		ExternalAPI: NewExternalAPILogger(f.baseLogger),
		Cache:       NewCacheLogger(f.baseLogger),
		Sparkline:   NewSparklineLogger(f.baseLogger),
		Security:    NewSecurityLogger(f.baseLogger),
	}
}

var (
	globalMu      sync.RWMutex
	globalLoggers *LoggerSet
)

// InitializeGlobalLoggers inicializa los loggers globales
func InitializeGlobalLoggers(config *LoggerConfig) error {
	factory, err := NewLoggerFactory(config)
	if err != nil {
		return fmt.Errorf("failed to initialize global loggers: %w", err)
	}

	SetGlobalLoggers(factory.GetLoggerSet())
	return nil
}

// SetGlobalLoggers reemplaza el set global
func SetGlobalLoggers(set *LoggerSet) {
	globalMu.Lock()
	globalLoggers = set
	globalMu.Unlock()
}

// GetGlobalLoggers retorna todos los loggers globales, creando unos por defecto si hace falta
func GetGlobalLoggers() *LoggerSet {
	globalMu.RLock()
	set := globalLoggers
	globalMu.RUnlock()
	if set != nil {
		return set
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLoggers == nil {
		factory, err := NewLoggerFactory(ConfigFromEnvironment(defaultServiceName, "1.0.0"))
		if err != nil {
			factory, _ = NewLoggerFactory(DefaultConfig())
		}
		globalLoggers = factory.GetLoggerSet()
	}
	return globalLoggers
}

func GetGlobalLogger() Logger {
	return GetGlobalLoggers().Base
}

// ConfigFromEnvironment arma la config desde LOG_LEVEL, LOG_FORMAT y
// LOG_ADD_SOURCE; la usan los loggers globales antes de que main cargue la
// configuración.
func ConfigFromEnvironment(service, version string) *LoggerConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	return NewConfig(service, version, env, Settings{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		AddSource: os.Getenv("LOG_ADD_SOURCE") == "true",
	})
}
