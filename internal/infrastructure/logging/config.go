package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LogFormat representa el formato de salida de los logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

const defaultServiceName = "sparkline-service"

// ErrInvalidConfig wraps every LoggerConfig validation failure
var ErrInvalidConfig = errors.New("invalid logger config")

// Settings is what operators control: the logging section of the YAML file
// or the LOG_* variables. Strings are parsed leniently.
type Settings struct {
	Level     string
	Format    string
	AddSource bool
}

// LoggerConfig is a resolved Settings plus the identity stamped on each entry
type LoggerConfig struct {
	Level       LogLevel
	Format      LogFormat
	Output      io.Writer
	Service     string
	Version     string
	Environment string
	AddSource   bool
}

// NewConfig resuelve settings para una instancia del servicio; niveles o
// formatos desconocidos caen en info/json.
func NewConfig(service, version, environment string, s Settings) *LoggerConfig {
	if service == "" {
		service = defaultServiceName
	}
	return &LoggerConfig{
		Level:       ParseLevel(s.Level),
		Format:      ParseFormat(s.Format),
		Output:      os.Stdout,
		Service:     service,
		Version:     version,
		Environment: environment,
		AddSource:   s.AddSource,
	}
}

// DefaultConfig is the fallback used before main has loaded configuration
func DefaultConfig() *LoggerConfig {
	return NewConfig(defaultServiceName, "dev", "development", Settings{})
}

// WithOutput redirige la salida; los tests escriben a un buffer
func (c *LoggerConfig) WithOutput(output io.Writer) *LoggerConfig {
	c.Output = output
	return c
}

func (c *LoggerConfig) Validate() error {
	switch {
	case !c.Level.valid():
		return fmt.Errorf("%w: level %q", ErrInvalidConfig, c.Level)
	case c.Format != FormatJSON && c.Format != FormatText:
		return fmt.Errorf("%w: format %q", ErrInvalidConfig, c.Format)
	case c.Output == nil:
		return fmt.Errorf("%w: nil output", ErrInvalidConfig)
	case c.Service == "":
		return fmt.Errorf("%w: empty service name", ErrInvalidConfig)
	}
	return nil
}

func (l LogLevel) valid() bool {
	_, ok := levelRank[l]
	return ok
}

// ParseLevel acepta "warning" como alias de warn; el resto cae en INFO
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func ParseFormat(format string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(format), string(FormatText)) {
		return FormatText
	}
	return FormatJSON
}
