package config

import "time"

// Config is the root configuration for the notification server.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DBConfig        `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Persist   PersistConfig   `yaml:"persist"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InstanceConfig identifies this server instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	WriteTimeout time.Duration `yaml:"write_timeout"` // Write deadline for WebSocket sends
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	TokenSecret string `yaml:"token_secret"` // HMAC secret for bearer token verification
}

// DBConfig holds the Postgres connection for connection history and user lookups.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// CacheConfig holds the Redis cache tier settings.
type CacheConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	TTL         time.Duration `yaml:"ttl"`          // Expiry for cached connection metadata
	DialTimeout time.Duration `yaml:"dial_timeout"` // Timeout for the startup ping
}

// HeartbeatConfig holds liveness probe settings.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// PersistConfig bounds best-effort persistence writes.
type PersistConfig struct {
	Timeout time.Duration `yaml:"timeout"` // Per-write bound for cache/database side writes
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path string `yaml:"path"`
}
