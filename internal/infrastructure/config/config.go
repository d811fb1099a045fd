package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all terminal configuration
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Authority    AuthorityConfig
	Connectivity ConnectivityConfig
	Pool         PoolConfig
	Sync         SyncConfig
	JWT          JWTConfig
	Log          LogConfig
	HTTP         HTTPConfig
}

// AppConfig holds terminal identity settings
type AppConfig struct {
	Name       string
	Env        string
	Port       string
	TerminalID string // stable id of this workstation, e.g. PIA-CAJA-02
	BranchCode string // branch short code used in identifier prefixes
}

// StoreConfig holds local sqlite store settings
type StoreConfig struct {
	Path          string // database file, e.g. /var/lib/terminal/local.db
	BusyTimeoutMS int
}

// AuthorityConfig holds the central server connection settings
type AuthorityConfig struct {
	BaseURL string
	APIKey  string // terminal credential for authenticated calls
	Timeout time.Duration
}

// ConnectivityConfig holds the supervisor's probe settings
type ConnectivityConfig struct {
	ProbeInterval    time.Duration
	ProbeTimeout     time.Duration
	FailureThreshold int           // consecutive failures before DEGRADED
	LockWindow       time.Duration // time degraded before LOCKED
}

// PoolConfig holds identifier reservation settings
type PoolConfig struct {
	BatchSize    int64 // identifiers requested per range
	LowWaterMark int64 // remaining headroom that triggers replenishment
}

// SyncConfig holds sync coordinator settings
type SyncConfig struct {
	DrainBatchSize  int
	DrainOnStart    bool
	SyncedRetention time.Duration // how long acknowledged records are kept
	ReplenishEvery  time.Duration // headroom check interval while online
}

// JWTConfig holds local UI session token settings
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds the local HTTP server configuration
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with TERMINAL_ prefix (e.g., TERMINAL_AUTHORITY_API_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/clinic-terminal")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("TERMINAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:       v.GetString("app.name"),
			Env:        v.GetString("app.env"),
			Port:       v.GetString("app.port"),
			TerminalID: v.GetString("app.terminal_id"),
			BranchCode: v.GetString("app.branch_code"),
		},
		Store: StoreConfig{
			Path:          v.GetString("store.path"),
			BusyTimeoutMS: v.GetInt("store.busy_timeout_ms"),
		},
		Authority: AuthorityConfig{
			BaseURL: v.GetString("authority.base_url"),
			APIKey:  v.GetString("authority.api_key"),
			Timeout: v.GetDuration("authority.timeout"),
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval:    v.GetDuration("connectivity.probe_interval"),
			ProbeTimeout:     v.GetDuration("connectivity.probe_timeout"),
			FailureThreshold: v.GetInt("connectivity.failure_threshold"),
			LockWindow:       v.GetDuration("connectivity.lock_window"),
		},
		Pool: PoolConfig{
			BatchSize:    v.GetInt64("pool.batch_size"),
			LowWaterMark: v.GetInt64("pool.low_water_mark"),
		},
		Sync: SyncConfig{
			DrainBatchSize:  v.GetInt("sync.drain_batch_size"),
			DrainOnStart:    v.GetBool("sync.drain_on_start"),
			SyncedRetention: v.GetDuration("sync.synced_retention"),
			ReplenishEvery:  v.GetDuration("sync.replenish_every"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetDuration("jwt.expiration"),
			Issuer:     v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "clinic-terminal"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8090"
	}
	if cfg.App.TerminalID == "" {
		cfg.App.TerminalID = "terminal-01"
	}
	if cfg.App.BranchCode == "" {
		cfg.App.BranchCode = "MAIN"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "terminal.db"
	}
	if cfg.Store.BusyTimeoutMS == 0 {
		cfg.Store.BusyTimeoutMS = 5000
	}
	if cfg.Authority.BaseURL == "" {
		cfg.Authority.BaseURL = "http://localhost:8080/api"
	}
	if cfg.Authority.Timeout == 0 {
		cfg.Authority.Timeout = 10 * time.Second
	}
	if cfg.Connectivity.ProbeInterval == 0 {
		cfg.Connectivity.ProbeInterval = 5 * time.Second
	}
	if cfg.Connectivity.ProbeTimeout == 0 {
		cfg.Connectivity.ProbeTimeout = 3 * time.Second
	}
	if cfg.Connectivity.FailureThreshold == 0 {
		cfg.Connectivity.FailureThreshold = 3
	}
	if cfg.Connectivity.LockWindow == 0 {
		cfg.Connectivity.LockWindow = 30 * time.Second
	}
	if cfg.Pool.BatchSize == 0 {
		cfg.Pool.BatchSize = 500
	}
	if cfg.Pool.LowWaterMark == 0 {
		cfg.Pool.LowWaterMark = 100
	}
	if cfg.Sync.DrainBatchSize == 0 {
		cfg.Sync.DrainBatchSize = 100
	}
	if cfg.Sync.SyncedRetention == 0 {
		cfg.Sync.SyncedRetention = 7 * 24 * time.Hour
	}
	if cfg.Sync.ReplenishEvery == 0 {
		cfg.Sync.ReplenishEvery = time.Minute
	}
	if cfg.JWT.Expiration == 0 {
		cfg.JWT.Expiration = 12 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "clinic-terminal"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Pool.LowWaterMark >= c.Pool.BatchSize {
		return fmt.Errorf("pool.low_water_mark (%d) must be below pool.batch_size (%d)",
			c.Pool.LowWaterMark, c.Pool.BatchSize)
	}
	if c.Connectivity.FailureThreshold < 1 {
		return fmt.Errorf("connectivity.failure_threshold must be at least 1")
	}
	if c.Connectivity.ProbeTimeout >= c.Connectivity.ProbeInterval {
		return fmt.Errorf("connectivity.probe_timeout (%s) must be below connectivity.probe_interval (%s)",
			c.Connectivity.ProbeTimeout, c.Connectivity.ProbeInterval)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Authority.APIKey == "" {
			return fmt.Errorf("authority.api_key is required in production")
		}
	}

	return nil
}

// DSN returns the sqlite connection string with pragmas applied. WAL
// keeps readers unblocked while the sync daemon writes.
func (s *StoreConfig) DSN() string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d", s.Path, s.BusyTimeoutMS)
}
