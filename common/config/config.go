// Package config provides centralized configuration management for the sportsagg services.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the master configuration struct shared by the processor, the
// ingestion service and the CLI.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds the ops HTTP server configuration (health, metrics).
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Addr returns the listen address for the ops server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// ProcessorConfig controls the game processor workers.
type ProcessorConfig struct {
	MaxWorkers      int           `mapstructure:"max_workers"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IngestionConfig controls the mock source workers.
type IngestionConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	Sources       []string      `mapstructure:"sources"`
	Seed          int64         `mapstructure:"seed"`
	MirrorEnabled bool          `mapstructure:"mirror_enabled"`
}

// DedupConfig holds the duplicate oracle settings.
type DedupConfig struct {
	Window           time.Duration `mapstructure:"window"`
	CacheTimeout     time.Duration `mapstructure:"cache_timeout"`
	BreakerFailures  uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
	BreakerHalfOpenN uint32        `mapstructure:"breaker_half_open_requests"`
}

// DatabaseConfig selects and configures the event store.
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ConnString builds a postgres:// URL usable by both pgx and golang-migrate.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Database,
		p.SSLMode,
	)
}

// SQLiteConfig holds the embedded store settings.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// NATSConfig holds NATS message broker configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Embedded      bool          `mapstructure:"embedded"`
	StoreDir      string        `mapstructure:"store_dir"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Stream        string        `mapstructure:"stream"`
	Consumer      string        `mapstructure:"consumer"`
	AckWait       time.Duration `mapstructure:"ack_wait"`
	MaxDeliver    int           `mapstructure:"max_deliver"`
	NakDelay      time.Duration `mapstructure:"nak_delay"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL        string `mapstructure:"url"`
	Enabled    bool   `mapstructure:"enabled"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`

	// StatsFlushInterval is how often per-source counters are written.
	StatsFlushInterval time.Duration `mapstructure:"stats_flush_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path, or from $SPORTSAGG_CONFIG_DIR/config.yaml
// when path is empty, and applies environment variable overrides.
// Environment variables use the key path with dots replaced by underscores
// (e.g. NATS_URL, DATABASE_DRIVER, PROCESSOR_MAX_WORKERS).
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path == "" {
		configDir := os.Getenv("SPORTSAGG_CONFIG_DIR")
		if configDir == "" {
			configDir = "/etc/sportsagg"
		}
		path = filepath.Join(configDir, "config.yaml")
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing file is fine: defaults and env vars still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Processor.MaxWorkers < 1 {
		return fmt.Errorf("processor.max_workers must be >= 1, got %d", c.Processor.MaxWorkers)
	}
	if c.Dedup.Window <= 0 {
		return fmt.Errorf("dedup.window must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("database.driver must be postgres, sqlite or memory, got %q", c.Database.Driver)
	}
	if c.Ingestion.Interval < time.Second {
		return fmt.Errorf("ingestion.interval must be at least 1s")
	}
	return nil
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	// Ops server
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	// Processor
	v.SetDefault("processor.max_workers", 4)
	v.SetDefault("processor.shutdown_timeout", "30s")

	// Ingestion
	v.SetDefault("ingestion.interval", "30s")
	v.SetDefault("ingestion.sources", []string{"football-mock", "basketball-mock", "hockey-mock"})
	v.SetDefault("ingestion.seed", 0)
	v.SetDefault("ingestion.mirror_enabled", true)

	// Dedup
	v.SetDefault("dedup.window", "2h")
	v.SetDefault("dedup.cache_timeout", "50ms")
	v.SetDefault("dedup.breaker_failures", 5)
	v.SetDefault("dedup.breaker_cooldown", "10s")
	v.SetDefault("dedup.breaker_half_open_requests", 1)

	// Database
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "sportsagg")
	v.SetDefault("database.postgres.user", "sportsagg")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.postgres.max_conns", 25)
	v.SetDefault("database.sqlite.path", "/var/lib/sportsagg/games.db")

	// NATS
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.embedded", false)
	v.SetDefault("nats.store_dir", "/var/lib/sportsagg/nats")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream", "GAMES")
	v.SetDefault("nats.consumer", "game-processor")
	v.SetDefault("nats.ack_wait", "30s")
	v.SetDefault("nats.max_deliver", 5)
	v.SetDefault("nats.nak_delay", "5s")

	// Redis
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.max_retries", 1)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.stats_flush_interval", "10s")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
