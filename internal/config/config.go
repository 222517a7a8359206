package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures the forecasting server endpoint, the reconciliation cadence,
// and the ambient logging and metrics settings.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Poll     PollConfig     `yaml:"poll"`
	Forecast ForecastConfig `yaml:"forecast"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	BaseURL string        `yaml:"baseURL" env:"SALESCAST_BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"SALESCAST_HTTP_TIMEOUT"`
	// Attempts per idempotent request; retrain submissions are never retried.
	MaxAttempts int           `yaml:"maxAttempts" env:"SALESCAST_HTTP_MAX_ATTEMPTS"`
	BaseBackoff time.Duration `yaml:"baseBackoff" env:"SALESCAST_HTTP_BASE_BACKOFF"`
	// Client side request rate limit
	RPS   float64 `yaml:"rps" env:"SALESCAST_HTTP_RPS"`
	Burst int     `yaml:"burst" env:"SALESCAST_HTTP_BURST"`
}

type PollConfig struct {
	Interval    time.Duration `yaml:"interval" env:"SALESCAST_POLL_INTERVAL"`
	MaxAttempts int           `yaml:"maxAttempts" env:"SALESCAST_POLL_MAX_ATTEMPTS"`
	// Failed reads tolerated before the run gives up waiting
	MaxReadFailures int     `yaml:"maxReadFailures" env:"SALESCAST_POLL_MAX_READ_FAILURES"`
	Tolerance       float64 `yaml:"tolerance" env:"SALESCAST_POLL_TOLERANCE"`
	// Per-sample read timeout; zero means the poll interval
	ReadTimeout time.Duration `yaml:"readTimeout" env:"SALESCAST_POLL_READ_TIMEOUT"`
	Reconfirm   bool          `yaml:"reconfirm" env:"SALESCAST_POLL_RECONFIRM"`
}

type ForecastConfig struct {
	DefaultWeeks int `yaml:"defaultWeeks" env:"SALESCAST_FORECAST_WEEKS"`
}

type MetricsConfig struct {
	// Empty disables the metrics endpoint
	Addr string `yaml:"addr" env:"SALESCAST_METRICS_ADDR"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"SALESCAST_LOG_LEVEL"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			BaseURL:     "http://127.0.0.1:8000",
			Timeout:     15 * time.Second,
			MaxAttempts: 3,
			BaseBackoff: 500 * time.Millisecond,
			RPS:         2,
			Burst:       10,
		},
		Poll: PollConfig{
			Interval:        2 * time.Second,
			MaxAttempts:     15,
			MaxReadFailures: 15,
			Tolerance:       1e-4,
			Reconfirm:       true,
		},
		Forecast: ForecastConfig{DefaultWeeks: 12},
		Metrics:  MetricsConfig{Addr: ""},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// ResolveEnv overrides config fields from SALESCAST_* environment variables.
// It is the only place the environment is read.
func (c *Config) ResolveEnv() error {
	return env.Parse(c)
}

// Validate rejects values the client cannot operate with.
func (c Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.New("server.baseURL is required")
	}
	if c.Server.MaxAttempts < 1 {
		return fmt.Errorf("server.maxAttempts must be at least 1, got %d", c.Server.MaxAttempts)
	}
	if c.Server.RPS <= 0 || c.Server.Burst < 1 {
		return fmt.Errorf("server rate limit must be positive, got rps=%v burst=%d", c.Server.RPS, c.Server.Burst)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("poll.maxAttempts must be at least 1, got %d", c.Poll.MaxAttempts)
	}
	if c.Poll.MaxReadFailures < 0 {
		return fmt.Errorf("poll.maxReadFailures must not be negative, got %d", c.Poll.MaxReadFailures)
	}
	if c.Poll.ReadTimeout < 0 {
		return fmt.Errorf("poll.readTimeout must not be negative, got %s", c.Poll.ReadTimeout)
	}
	if c.Poll.Tolerance <= 0 {
		return fmt.Errorf("poll.tolerance must be positive, got %v", c.Poll.Tolerance)
	}
	if c.Forecast.DefaultWeeks < 1 || c.Forecast.DefaultWeeks > 52 {
		return fmt.Errorf("forecast.defaultWeeks must be within 1..52, got %d", c.Forecast.DefaultWeeks)
	}
	return nil
}

// Load reads YAML config from path on top of Default, then applies the
// environment. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ResolveEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
