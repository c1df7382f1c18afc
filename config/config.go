package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Default values of the optional settings.
const (
	DefaultListen       = ":8080"
	DefaultCallerHeader = "X-Caller-Identity"
	DefaultLogLevel     = "info"
	DefaultLogEncoding  = "console"
)

// Config describes the YAML configuration of the rating ledger service.
type Config struct {
	// Identity allowed to patch the service state.
	Admin string `yaml:"admin"`

	Storage dbconfig.DBConfiguration `yaml:"storage"`
	Logger  Logger                   `yaml:"logger"`
	Server  Server                   `yaml:"server"`
}

// Logger configures zap logger.
type Logger struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// Server configures the HTTP binding.
type Server struct {
	Listen string `yaml:"listen"`
	// Header carrying authenticated caller identity set by the fronting host.
	CallerHeader string `yaml:"caller_header"`
}

// Load reads, completes with defaults and validates the configuration file.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config YAML: %w", err)
	}

	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Type == "" {
		c.Storage.Type = dbconfig.InMemoryDB
	}
	if c.Logger.Level == "" {
		c.Logger.Level = DefaultLogLevel
	}
	if c.Logger.Encoding == "" {
		c.Logger.Encoding = DefaultLogEncoding
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.CallerHeader == "" {
		c.Server.CallerHeader = DefaultCallerHeader
	}
}

// Validate checks that all the settings are consistent.
func (c Config) Validate() error {
	if c.Admin == "" {
		return errors.New("admin is required")
	}

	switch c.Storage.Type {
	case dbconfig.InMemoryDB:
	case dbconfig.BoltDB:
		if c.Storage.BoltDBOptions.FilePath == "" {
			return errors.New("storage.BoltDBOptions.FilePath is required for boltdb")
		}
	case dbconfig.LevelDB:
		if c.Storage.LevelDBOptions.DataDirectoryPath == "" {
			return errors.New("storage.LevelDBOptions.DataDirectoryPath is required for leveldb")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	if _, err := c.Logger.level(); err != nil {
		return err
	}

	switch c.Logger.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported logger encoding %q", c.Logger.Encoding)
	}

	return nil
}

func (l Logger) level() (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return lvl, fmt.Errorf("invalid logger level %q: %w", l.Level, err)
	}
	return lvl, nil
}

// Build constructs zap.Logger writing to stderr.
func (l Logger) Build() (*zap.Logger, error) {
	lvl, err := l.level()
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = l.Encoding
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if l.Encoding == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return cfg.Build()
}
