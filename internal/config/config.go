// Package config provides configuration management for hookd.
package config

import (
	"strconv"
	"time"
)

// Config is the root configuration structure for hookd.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Database DatabaseConfig `mapstructure:"database"`
	Live     LiveConfig     `mapstructure:"live"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind the server to
	Host string `mapstructure:"host"`

	// Port to listen on
	Port int `mapstructure:"port"`

	// Request timeouts
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Per-client rate limit on the webhook route
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Proxies (IPs or CIDRs) allowed to set X-Real-IP / X-Forwarded-For.
	// Empty means the socket address is always the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// RateLimitConfig holds the webhook rate limit settings.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Maximum requests per window
	Max int `mapstructure:"max"`

	// Time window
	Window time.Duration `mapstructure:"window"`
}

// WebhookConfig holds settings for the inbound webhook endpoint.
type WebhookConfig struct {
	// Static shared secret. When empty the secret is read from SecretEnv
	// on every request.
	Secret string `mapstructure:"secret"`

	// Environment variable holding the shared secret
	SecretEnv string `mapstructure:"secret_env"`

	// Maximum request body size in bytes
	MaxBodySize int64 `mapstructure:"max_body_size"`

	// Cross-origin policy for the webhook and read API routes
	CORS CORSConfig `mapstructure:"cors"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Allowed origin patterns (glob syntax, "*" allows any origin)
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Allowed methods
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// Allowed headers
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// JournalConfig holds settings for the delivery journal.
type JournalConfig struct {
	// Record accepted deliveries
	Enabled bool `mapstructure:"enabled"`

	// How long deliveries are kept
	Retention time.Duration `mapstructure:"retention"`

	// Cron expression for the retention sweep
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string `mapstructure:"path"`

	// Enable WAL mode (recommended)
	WALMode bool `mapstructure:"wal_mode"`

	// Busy timeout
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	// Maximum open connections
	MaxOpenConns int `mapstructure:"max_open_conns"`

	// Maximum idle connections
	MaxIdleConns int `mapstructure:"max_idle_conns"`
}

// LiveConfig holds settings for the websocket delivery feed.
type LiveConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Maximum concurrent websocket clients
	MaxClients int `mapstructure:"max_clients"`

	// Per-client outbound buffer
	BufferSize int `mapstructure:"buffer_size"`
}

// MetricsConfig holds prometheus settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Log format (json, console)
	Format string `mapstructure:"format"`

	// Include caller info
	Caller bool `mapstructure:"caller"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}
