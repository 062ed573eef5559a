package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// RedisConfig holds the optional trust-score cache settings. Caching is off
// unless an address is configured.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	DB          int           `yaml:"db"`
	VTSCacheTTL time.Duration `yaml:"vts_cache_ttl"`
}

// OpsConfig holds operator-surface settings: retry policy for transient
// storage failures and the metrics/health listener.
type OpsConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	ListenAddr     string        `yaml:"listen_addr"`
}

// ReaderConfig bounds the event window reader.
type ReaderConfig struct {
	PageSize       int     `yaml:"page_size"`
	PagesPerSecond float64 `yaml:"pages_per_second"`
}

// AppConfig is the full file-backed configuration.
type AppConfig struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Ops      OpsConfig      `yaml:"ops"`
	Reader   ReaderConfig   `yaml:"reader"`
	Params   Params         `yaml:"params"`
}

// DefaultAppConfig returns the defaults used when no file is present.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			QueryTimeout:    30 * time.Second,
		},
		Redis: RedisConfig{
			VTSCacheTTL: 15 * time.Minute,
		},
		Ops: OpsConfig{
			MaxRetries:     3,
			RetryBaseDelay: 500 * time.Millisecond,
			ListenAddr:     ":9187",
		},
		Reader: ReaderConfig{
			PageSize:       10_000,
			PagesPerSecond: 20,
		},
		Params: DefaultParams(),
	}
}

// Load reads configuration from a YAML file if it exists, applies environment
// overrides, and fills defaults for anything unset.
func Load(path string) (*AppConfig, error) {
	cfg := DefaultAppConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	fillDefaults(cfg)

	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration back to a YAML file.
func Save(cfg *AppConfig, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if dsn := os.Getenv("REVCORE_PG_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if addr := os.Getenv("REVCORE_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if addr := os.Getenv("REVCORE_LISTEN_ADDR"); addr != "" {
		cfg.Ops.ListenAddr = addr
	}
	if v := os.Getenv("REVCORE_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.QueryTimeout = d
		}
	}
	if v := os.Getenv("REVCORE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ops.MaxRetries = n
		}
	}
	if v := os.Getenv("REVCORE_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reader.PageSize = n
		}
	}
}

func fillDefaults(cfg *AppConfig) {
	def := DefaultAppConfig()
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = def.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = def.Database.MaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = def.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = def.Database.ConnMaxIdleTime
	}
	if cfg.Database.QueryTimeout == 0 {
		cfg.Database.QueryTimeout = def.Database.QueryTimeout
	}
	if cfg.Redis.VTSCacheTTL == 0 {
		cfg.Redis.VTSCacheTTL = def.Redis.VTSCacheTTL
	}
	if cfg.Ops.MaxRetries == 0 {
		cfg.Ops.MaxRetries = def.Ops.MaxRetries
	}
	if cfg.Ops.RetryBaseDelay == 0 {
		cfg.Ops.RetryBaseDelay = def.Ops.RetryBaseDelay
	}
	if cfg.Ops.ListenAddr == "" {
		cfg.Ops.ListenAddr = def.Ops.ListenAddr
	}
	if cfg.Reader.PageSize == 0 {
		cfg.Reader.PageSize = def.Reader.PageSize
	}
	if cfg.Reader.PagesPerSecond == 0 {
		cfg.Reader.PagesPerSecond = def.Reader.PagesPerSecond
	}
	if cfg.Params == (Params{}) {
		cfg.Params = def.Params
	}
}
