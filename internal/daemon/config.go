// Package daemon holds the process configuration of the cbledger server.
//
// Precedence, lowest first: DefaultConfig, the TOML file, CBLEDGER_*
// environment variables.
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/fueleu/cbledger/internal/infra/logging"
)

// EnvPrefix prefixes every environment override, e.g. CBLEDGER_API_PORT.
const EnvPrefix = "CBLEDGER_"

// Config is the full daemon configuration.
type Config struct {
	API        APIConfig        `toml:"api" envPrefix:"API_"`
	Storage    StorageConfig    `toml:"storage" envPrefix:"STORAGE_"`
	Regulation RegulationConfig `toml:"regulation" envPrefix:"REGULATION_"`
	Log        LogConfig        `toml:"log" envPrefix:"LOG_"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Host        string `toml:"host" env:"HOST"`
	Port        int    `toml:"port" env:"PORT"`
	ReadTimeout string `toml:"read_timeout" env:"READ_TIMEOUT"`
	Metrics     bool   `toml:"metrics" env:"METRICS"`
	CORSOrigin  string `toml:"cors_origin" env:"CORS_ORIGIN"`
}

// StorageConfig locates the SQLite database directory.
type StorageConfig struct {
	Path string `toml:"path" env:"PATH"`
}

// RegulationConfig selects the regulatory table.
type RegulationConfig struct {
	TablePath   string `toml:"table_path" env:"TABLE_PATH"`     // empty = embedded defaults
	StrictYears bool   `toml:"strict_years" env:"STRICT_YEARS"` // reject years without a target
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			ReadTimeout: "15s",
			Metrics:     true,
			CORSOrigin:  "*",
		},
		Storage: StorageConfig{
			Path: ".cbledger",
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatJSON,
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if it
// exists) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unusable settings.
func (c Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if _, err := c.API.ReadTimeoutDuration(); err != nil {
		return err
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", logging.FormatJSON, logging.FormatConsole, c.Log.Format)
	}
	return nil
}

// Addr returns host:port for the listener.
func (a APIConfig) Addr() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ReadTimeoutDuration parses ReadTimeout. Empty means no timeout.
func (a APIConfig) ReadTimeoutDuration() (time.Duration, error) {
	if a.ReadTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.ReadTimeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("api.read_timeout %q is not a valid duration", a.ReadTimeout)
	}
	return d, nil
}
