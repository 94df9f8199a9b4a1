package config

import "time"

// Default configuration values.
const (
	// Server defaults.
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 3000
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRateLimitMax    = 120
	DefaultRateLimitWindow = time.Minute

	// Webhook defaults.
	DefaultSecretEnv   = "WEBHOOK_SECRET"
	DefaultMaxBodySize = 1 << 20 // 1MB

	// Journal defaults.
	DefaultRetention       = 30 * 24 * time.Hour
	DefaultCleanupSchedule = "@hourly"

	// Database defaults.
	DefaultDBPath       = "hookd.db"
	DefaultBusyTimeout  = 5 * time.Second
	DefaultMaxOpenConns = 1 // SQLite works best with single writer
	DefaultMaxIdleConns = 1

	// Live feed defaults.
	DefaultMaxClients = 100
	DefaultBufferSize = 64

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			RateLimit: RateLimitConfig{
				Enabled: false,
				Max:     DefaultRateLimitMax,
				Window:  DefaultRateLimitWindow,
			},
			TrustedProxies: []string{},
		},
		Webhook: WebhookConfig{
			SecretEnv:   DefaultSecretEnv,
			MaxBodySize: DefaultMaxBodySize,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-Webhook-Secret"},
			},
		},
		Journal: JournalConfig{
			Enabled:         true,
			Retention:       DefaultRetention,
			CleanupSchedule: DefaultCleanupSchedule,
		},
		Database: DatabaseConfig{
			Path:         DefaultDBPath,
			WALMode:      true,
			BusyTimeout:  DefaultBusyTimeout,
			MaxOpenConns: DefaultMaxOpenConns,
			MaxIdleConns: DefaultMaxIdleConns,
		},
		Live: LiveConfig{
			Enabled:    true,
			MaxClients: DefaultMaxClients,
			BufferSize: DefaultBufferSize,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
