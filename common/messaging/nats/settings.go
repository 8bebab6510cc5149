package nats

import (
	"log/slog"
	"net/url"
	"strconv"

	"github.com/telhawk-systems/sportsagg/common/config"
)

// defaultPort is used when the configured URL does not name one.
const defaultPort = 4222

// ConfigFrom builds a client Config for the named service from the shared
// NATS settings.
func ConfigFrom(cfg config.NATSConfig, name string, logger *slog.Logger) Config {
	c := DefaultConfig()
	if cfg.URL != "" {
		c.URL = cfg.URL
	}
	if name != "" {
		c.Name = name
	}
	c.MaxReconnects = cfg.MaxReconnects
	if cfg.ReconnectWait > 0 {
		c.ReconnectWait = cfg.ReconnectWait
	}
	c.Logger = logger
	return c
}

// EmbeddedConfigFrom builds an embedded server config that listens where
// nats.url points, so other services can connect to it unchanged.
func EmbeddedConfigFrom(cfg config.NATSConfig) EmbeddedConfig {
	ec := EmbeddedConfig{Port: defaultPort, StoreDir: cfg.StoreDir}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return ec
	}
	if host := u.Hostname(); host != "" {
		ec.Host = host
	}
	if port, err := strconv.Atoi(u.Port()); err == nil {
		ec.Port = port
	}
	return ec
}
