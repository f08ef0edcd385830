package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerPort        = 8000
	DefaultWriteTimeout      = 5 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultCacheAddr         = "localhost:6379"
	DefaultCacheTTL          = 24 * time.Hour
	DefaultCacheDialTimeout  = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultPersistTimeout    = 3 * time.Second
	DefaultMetricsPath       = "/metrics"
)

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Cache defaults
	if c.Cache.Addr == "" {
		c.Cache.Addr = DefaultCacheAddr
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.DialTimeout == 0 {
		c.Cache.DialTimeout = DefaultCacheDialTimeout
	}

	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = DefaultHeartbeatInterval
	}
	if c.Persist.Timeout == 0 {
		c.Persist.Timeout = DefaultPersistTimeout
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
