// Package config loads the runtime configuration of the operations bus from a YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

// Ledger drivers.
const (
	DriverMemory   = "memory"
	DriverRamsql   = "ramsql"
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

// LogConfig is the configuration for the logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // debug, info, warn or error
}

// RetryConfig is the configuration of the retry middleware.
type RetryConfig struct {
	MaxAttempts uint          `mapstructure:"max_attempts" yaml:"max_attempts"` // Total executions, 1 disables retries
	Delay       time.Duration `mapstructure:"delay" yaml:"delay"`               // Pause between attempts
}

// RateLimitConfig is the configuration of the per operation rate limit.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`     // Tokens per second, 0 disables the limit
	Burst int     `mapstructure:"burst" yaml:"burst"` // Bucket size
}

// BusConfig selects the standard middleware installed on the bus.
type BusConfig struct {
	Timeout   time.Duration   `mapstructure:"timeout" yaml:"timeout"`       // Execution deadline, 0 disables it
	Retry     RetryConfig     `mapstructure:"retry" yaml:"retry"`           // Retry of failed executions
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"` // Per operation rate limit
	Metrics   bool            `mapstructure:"metrics" yaml:"metrics"`       // Prometheus metrics
	Tracing   bool            `mapstructure:"tracing" yaml:"tracing"`       // OpenTelemetry spans
	Report    bool            `mapstructure:"report" yaml:"report"`         // Dispatch reports
}

// LedgerConfig is the configuration of the ledger of the bank example.
//
// WARNING: DSN may contain credentials and should not be logged.
type LedgerConfig struct {
	Driver   string           `mapstructure:"driver" yaml:"driver"`     // memory, ramsql, sqlite or postgres
	DSN      string           `mapstructure:"dsn" yaml:"dsn"`           // Secret: data source name for SQL drivers
	Accounts map[string]int64 `mapstructure:"accounts" yaml:"accounts"` // Opening balances
}

// Config wraps the entire configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Bus    BusConfig    `mapstructure:"bus" yaml:"bus"`
	Ledger LedgerConfig `mapstructure:"ledger" yaml:"ledger"`
}

// Defaults fills the unset fields with their default values.
func (c *Config) Defaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Bus.Retry.MaxAttempts == 0 {
		c.Bus.Retry.MaxAttempts = 1
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = DriverMemory
	}
	if c.Ledger.DSN == "" {
		switch c.Ledger.Driver {
		case DriverSqlite:
			c.Ledger.DSN = ":memory:"
		case DriverRamsql:
			c.Ledger.DSN = "opbus"
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Bus.Timeout < 0 {
		errs = append(errs, errors.New("bus.timeout must not be negative"))
	}
	if c.Bus.Retry.Delay < 0 {
		errs = append(errs, errors.New("bus.retry.delay must not be negative"))
	}
	if c.Bus.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("bus.rate_limit.rps must not be negative"))
	}
	if c.Bus.RateLimit.RPS > 0 && c.Bus.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("bus.rate_limit.burst must be positive when rps is set"))
	}

	switch c.Ledger.Driver {
	case DriverMemory, DriverRamsql, DriverSqlite:
	case DriverPostgres:
		if c.Ledger.DSN == "" {
			errs = append(errs, errors.New("ledger.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.driver: unknown driver %q", c.Ledger.Driver))
	}
	for account, balance := range c.Ledger.Accounts {
		if balance < 0 {
			errs = append(errs, fmt.Errorf("ledger.accounts.%s: opening balance must not be negative", account))
		}
	}

	return errors.Join(errs...)
}

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
// Defaults are applied and the result is validated.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	// If the config file exists, we continue to read it, otherwise we fallback to using
	// environment variables
	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := viper.New()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// LoadFile loads the config from a file.
func LoadFile(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.Defaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var (
	// envBindings maps a config key to the environment variables that can provide its value.
	// The first name is the preferred one, the second (if present) a legacy name. Viper uses the
	// first variable of the list that is set.
	envBindings = map[string][]string{
		"log.level":              {"OPBUS_LOG_LEVEL", "LOG_LEVEL"},
		"bus.timeout":            {"OPBUS_BUS_TIMEOUT"},
		"bus.retry.max_attempts": {"OPBUS_BUS_RETRY_MAX_ATTEMPTS"},
		"bus.retry.delay":        {"OPBUS_BUS_RETRY_DELAY"},
		"bus.rate_limit.rps":     {"OPBUS_BUS_RATE_LIMIT_RPS"},
		"bus.rate_limit.burst":   {"OPBUS_BUS_RATE_LIMIT_BURST"},
		"bus.metrics":            {"OPBUS_BUS_METRICS"},
		"bus.tracing":            {"OPBUS_BUS_TRACING"},
		"bus.report":             {"OPBUS_BUS_REPORT"},
		"ledger.driver":          {"OPBUS_LEDGER_DRIVER"},
		"ledger.dsn":             {"OPBUS_LEDGER_DSN", "DATABASE_URL"},
	}
)

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		// Prepend the key to the start of the arguments
		inputs := slices.Insert(slices.Clone(envs), 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
