package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SPORTSAGG_CONFIG_DIR", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)

	assert.Equal(t, 4, cfg.Processor.MaxWorkers)
	assert.Equal(t, 2*time.Hour, cfg.Dedup.Window)
	assert.Equal(t, 50*time.Millisecond, cfg.Dedup.CacheTimeout)
	assert.Equal(t, uint32(5), cfg.Dedup.BreakerFailures)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	assert.Equal(t, "GAMES", cfg.NATS.Stream)
	assert.Equal(t, "game-processor", cfg.NATS.Consumer)
	assert.Equal(t, 5, cfg.NATS.MaxDeliver)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"football-mock", "basketball-mock", "hockey-mock"}, cfg.Ingestion.Sources)
	assert.Equal(t, 30*time.Second, cfg.Ingestion.Interval)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9191
processor:
  max_workers: 16
dedup:
  window: 90m
database:
  driver: sqlite
  sqlite:
    path: /tmp/games.db
nats:
  url: nats://broker:4222
  embedded: true
redis:
  enabled: false
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, ":9191", cfg.Server.Addr())
	assert.Equal(t, 16, cfg.Processor.MaxWorkers)
	assert.Equal(t, 90*time.Minute, cfg.Dedup.Window)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/games.db", cfg.Database.SQLite.Path)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.True(t, cfg.NATS.Embedded)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	// Untouched keys keep their defaults.
	assert.Equal(t, "GAMES", cfg.NATS.Stream)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SPORTSAGG_CONFIG_DIR", t.TempDir())
	t.Setenv("NATS_URL", "nats://env-host:4222")
	t.Setenv("PROCESSOR_MAX_WORKERS", "8")
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("DEDUP_WINDOW", "3h")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "nats://env-host:4222", cfg.NATS.URL)
	assert.Equal(t, 8, cfg.Processor.MaxWorkers)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 3*time.Hour, cfg.Dedup.Window)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0o644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Processor: ProcessorConfig{MaxWorkers: 1},
			Dedup:     DedupConfig{Window: 2 * time.Hour},
			Database:  DatabaseConfig{Driver: "postgres"},
			Ingestion: IngestionConfig{Interval: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero workers", func(c *Config) { c.Processor.MaxWorkers = 0 }, true},
		{"zero window", func(c *Config) { c.Dedup.Window = 0 }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"sub-second interval", func(c *Config) { c.Ingestion.Interval = 10 * time.Millisecond }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPostgresConnString(t *testing.T) {
	p := PostgresConfig{
		Host:     "db",
		Port:     5432,
		Database: "sportsagg",
		User:     "app",
		Password: "secret",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://app:secret@db:5432/sportsagg?sslmode=disable", p.ConnString())
}
