// Package config loads shardd settings from an optional YAML file, a .env
// file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers accepted by StoreConfig.Driver.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Store    StoreConfig    `yaml:"store"`
	Executor ExecutorConfig `yaml:"executor"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins lists the origins the UI may call from. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type MetricsConfig struct {
	// Addr of the metrics server. Empty disables the server.
	Addr    string `yaml:"addr"`
	Enabled *bool  `yaml:"enabled"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	DatabaseURL string `yaml:"database_url"`
	Migrate     bool   `yaml:"migrate"`
}

type ExecutorConfig struct {
	MaxWorkers   int           `yaml:"max_workers"`
	ShardTimeout time.Duration `yaml:"shard_timeout"`
}

type MonitorConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxFailures int           `yaml:"max_failures"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Driver: StoreMemory,
		},
		Executor: ExecutorConfig{
			MaxWorkers:   8,
			ShardTimeout: 30 * time.Second,
		},
		Monitor: MonitorConfig{
			Interval:    10 * time.Second,
			MaxFailures: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. path may be empty; a missing .env file is ignored.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SHARDD_HTTP_ADDR"); ok {
		c.HTTP.Addr = v
	}
	if v, ok := lookup("SHARDD_ALLOWED_ORIGINS"); ok {
		c.HTTP.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.HTTP.AllowedOrigins = append(c.HTTP.AllowedOrigins, origin)
			}
		}
	}
	if v, ok := lookup("SHARDD_METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}
	if v, ok := lookup("SHARDD_STORE_DRIVER"); ok {
		c.Store.Driver = v
	}
	if v, ok := lookup("DATABASE_URL"); ok {
		c.Store.DatabaseURL = v
	}
	if v, ok := lookup("SHARDD_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := lookup("SHARDD_MAX_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SHARDD_MAX_WORKERS %q: %w", v, err)
		}
		c.Executor.MaxWorkers = n
	}
	if v, ok := lookup("SHARDD_SHARD_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SHARDD_SHARD_TIMEOUT %q: %w", v, err)
		}
		c.Executor.ShardTimeout = d
	}
	if v, ok := lookup("SHARDD_MONITOR_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SHARDD_MONITOR_INTERVAL %q: %w", v, err)
		}
		c.Monitor.Interval = d
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("store.database_url is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Executor.MaxWorkers <= 0 {
		return errors.New("executor.max_workers must be positive")
	}
	if c.Executor.ShardTimeout <= 0 {
		return errors.New("executor.shard_timeout must be positive")
	}
	if c.Monitor.Interval <= 0 {
		return errors.New("monitor.interval must be positive")
	}
	if c.Monitor.MaxFailures <= 0 {
		return errors.New("monitor.max_failures must be positive")
	}
	return nil
}
