package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Data source drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort    = 3000
	DefaultCORSOrigin  = "*"
	DefaultDataPath    = "data/pipeline.json"
	DefaultServiceName = "funnelstack"
	DefaultEndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Config holds the funnelstack configuration parsed from config.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API listens on (default 3000).
	HTTPPort int `yaml:"http_port"`

	// CORSOrigin is sent as Access-Control-Allow-Origin on every API response.
	// Default "*".
	CORSOrigin string `yaml:"cors_origin"`
}

// DataConfig selects where funnel stages are read from.
type DataConfig struct {
	// Driver is one of: file | sqlite.
	Driver string `yaml:"driver"`

	// Path is the JSON or YAML stage file, used when Driver == "file".
	Path string `yaml:"path"`

	// DSN is the SQLite database path, used when Driver == "sqlite".
	DSN string `yaml:"dsn"`

	// Query overrides the SQL used to read stages. It must return label, count
	// and acv columns in funnel order.
	Query string `yaml:"query"`
}

// TelemetryConfig controls OTLP trace export.
type TelemetryConfig struct {
	// EndpointEnv is the name of the environment variable holding the OTLP/HTTP
	// collector endpoint (host:port). Tracing export is disabled when unset.
	EndpointEnv string `yaml:"endpoint_env"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	ServiceName string `yaml:"service_name"`
}

// Endpoint returns the collector endpoint resolved from the environment.
func (t TelemetryConfig) Endpoint() string {
	if t.EndpointEnv == "" {
		return ""
	}
	return os.Getenv(t.EndpointEnv)
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error (default info).
	Level string `yaml:"level"`
}

// SlogLevel maps Level to a slog.Level. Validation guarantees a known value.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the config file at path.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values. It is also what
// the CLI uses when no config file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:   DefaultHTTPPort,
			CORSOrigin: DefaultCORSOrigin,
		},
		Data: DataConfig{
			Driver: DriverFile,
			Path:   DefaultDataPath,
		},
		Telemetry: TelemetryConfig{
			EndpointEnv: DefaultEndpointEnv,
			ServiceName: DefaultServiceName,
		},
		Log: LogConfig{Level: "info"},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Data.Driver {
	case DriverFile:
		if cfg.Data.Path == "" {
			return fmt.Errorf("data.path is required for driver %q", DriverFile)
		}
	case DriverSQLite:
		if cfg.Data.DSN == "" {
			return fmt.Errorf("data.dsn is required for driver %q", DriverSQLite)
		}
	default:
		return fmt.Errorf("data.driver %q unknown: want file|sqlite", cfg.Data.Driver)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	return nil
}
