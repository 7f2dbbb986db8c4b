package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileCfg is the config that is loaded from the testdata/config.yml file.
var fileCfg = &Config{
	Log: LogConfig{Level: "debug"},
	Bus: BusConfig{
		Timeout:   5 * time.Second,
		Retry:     RetryConfig{MaxAttempts: 3, Delay: 100 * time.Millisecond},
		RateLimit: RateLimitConfig{RPS: 10, Burst: 20},
		Metrics:   true,
		Tracing:   true,
		Report:    true,
	},
	Ledger: LedgerConfig{
		Driver:   DriverSqlite,
		DSN:      "file:opbus.db",
		Accounts: map[string]int64{"alice": 100, "bob": 25},
	},
}

// clearEnv unsets every bound variable so the host environment does not leak into a test.
// Viper ignores empty variables.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, envs := range envBindings {
		for _, env := range envs {
			t.Setenv(env, "")
		}
	}
}

func Test_LoadFile(t *testing.T) {
	t.Parallel()

	got, err := LoadFile(filepath.Join("testdata", "config.yml"))
	require.NoError(t, err)
	assert.Equal(t, fileCfg, got)
}

func Test_LoadFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join("testdata", "missing.yml"))
	require.Error(t, err)

	_, err = LoadFile(filepath.Join("testdata", "invalid.yml"))
	require.ErrorContains(t, err, `ledger.driver: unknown driver "mongo"`)
}

func Test_LoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPBUS_LOG_LEVEL", "warn")
	t.Setenv("OPBUS_BUS_TIMEOUT", "2s")
	t.Setenv("OPBUS_BUS_RETRY_MAX_ATTEMPTS", "4")
	t.Setenv("OPBUS_BUS_RETRY_DELAY", "1s")
	t.Setenv("OPBUS_BUS_RATE_LIMIT_RPS", "2.5")
	t.Setenv("OPBUS_BUS_RATE_LIMIT_BURST", "5")
	t.Setenv("OPBUS_BUS_METRICS", "true")
	t.Setenv("OPBUS_BUS_REPORT", "true")
	t.Setenv("OPBUS_LEDGER_DRIVER", "ramsql")

	got, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Log: LogConfig{Level: "warn"},
		Bus: BusConfig{
			Timeout:   2 * time.Second,
			Retry:     RetryConfig{MaxAttempts: 4, Delay: time.Second},
			RateLimit: RateLimitConfig{RPS: 2.5, Burst: 5},
			Metrics:   true,
			Report:    true,
		},
		Ledger: LedgerConfig{Driver: DriverRamsql, DSN: "opbus"},
	}, got)
}

func Test_Load_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPBUS_LEDGER_DSN", "file:other.db")

	got, err := Load(filepath.Join("testdata", "config.yml"))
	require.NoError(t, err)
	assert.Equal(t, "file:other.db", got.Ledger.DSN)
	assert.Equal(t, fileCfg.Bus, got.Bus)
}

func Test_Load_MissingFileFallsBackToEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPBUS_LEDGER_DRIVER", "postgres")
	// legacy name
	t.Setenv("DATABASE_URL", "postgres://localhost/opbus")

	got, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, got.Ledger.Driver)
	assert.Equal(t, "postgres://localhost/opbus", got.Ledger.DSN)
	assert.Equal(t, "info", got.Log.Level)
	assert.Equal(t, uint(1), got.Bus.Retry.MaxAttempts)
}

func Test_Config_Defaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Defaults()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, uint(1), cfg.Bus.Retry.MaxAttempts)
	assert.Equal(t, DriverMemory, cfg.Ledger.Driver)
	assert.Empty(t, cfg.Ledger.DSN)

	cfg = &Config{Ledger: LedgerConfig{Driver: DriverSqlite}}
	cfg.Defaults()
	assert.Equal(t, ":memory:", cfg.Ledger.DSN)
}

func Test_Config_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Bus.Timeout = -time.Second },
			wantErr: "bus.timeout must not be negative",
		},
		{
			name:    "negative retry delay",
			mutate:  func(c *Config) { c.Bus.Retry.Delay = -time.Second },
			wantErr: "bus.retry.delay must not be negative",
		},
		{
			name:    "rate without burst",
			mutate:  func(c *Config) { c.Bus.RateLimit.RPS = 1 },
			wantErr: "bus.rate_limit.burst must be positive when rps is set",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.Bus.RateLimit.RPS = -1 },
			wantErr: "bus.rate_limit.rps must not be negative",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Ledger.Driver = DriverPostgres },
			wantErr: "ledger.dsn is required for the postgres driver",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Ledger.Driver = "mongo" },
			wantErr: `ledger.driver: unknown driver "mongo"`,
		},
		{
			name:    "negative opening balance",
			mutate:  func(c *Config) { c.Ledger.Accounts = map[string]int64{"alice": -1} },
			wantErr: "ledger.accounts.alice: opening balance must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &Config{}
			cfg.Defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
