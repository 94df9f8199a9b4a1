package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type LoadOptions struct {
	ConfigFile string
	EnvPrefix  string
	Defaults   *Config
}

func Load(opts LoadOptions) (*Config, error) {
	v, err := newViper(opts)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	return Load(LoadOptions{ConfigFile: path})
}

func LoadWithDefaults() (*Config, error) {
	return Load(LoadOptions{})
}

// Settings returns the merged configuration as a nested map keyed by the
// same names used in the YAML file.
func Settings(opts LoadOptions) (map[string]any, error) {
	v, err := newViper(opts)
	if err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

func newViper(opts LoadOptions) (*viper.Viper, error) {
	v := viper.New()

	defaults := opts.Defaults
	if defaults == nil {
		defaults = Default()
	}
	setViperDefaults(v, defaults)

	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "HOOKD"
	}
	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("hookd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/hookd")
		v.AddConfigPath("/etc/hookd")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	expandEnvInConfig(v)

	return v, nil
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.rate_limit.enabled", cfg.Server.RateLimit.Enabled)
	v.SetDefault("server.rate_limit.max", cfg.Server.RateLimit.Max)
	v.SetDefault("server.rate_limit.window", cfg.Server.RateLimit.Window)
	v.SetDefault("server.trusted_proxies", cfg.Server.TrustedProxies)

	// The secret itself has no default; registering the key lets
	// HOOKD_WEBHOOK_SECRET bind through AutomaticEnv.
	v.SetDefault("webhook.secret", cfg.Webhook.Secret)
	v.SetDefault("webhook.secret_env", cfg.Webhook.SecretEnv)
	v.SetDefault("webhook.max_body_size", cfg.Webhook.MaxBodySize)
	v.SetDefault("webhook.cors.allowed_origins", cfg.Webhook.CORS.AllowedOrigins)
	v.SetDefault("webhook.cors.allowed_methods", cfg.Webhook.CORS.AllowedMethods)
	v.SetDefault("webhook.cors.allowed_headers", cfg.Webhook.CORS.AllowedHeaders)

	v.SetDefault("journal.enabled", cfg.Journal.Enabled)
	v.SetDefault("journal.retention", cfg.Journal.Retention)
	v.SetDefault("journal.cleanup_schedule", cfg.Journal.CleanupSchedule)

	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.wal_mode", cfg.Database.WALMode)
	v.SetDefault("database.busy_timeout", cfg.Database.BusyTimeout)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)

	v.SetDefault("live.enabled", cfg.Live.Enabled)
	v.SetDefault("live.max_clients", cfg.Live.MaxClients)
	v.SetDefault("live.buffer_size", cfg.Live.BufferSize)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.caller", cfg.Logging.Caller)
}

func expandEnvInConfig(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envVar := val[2 : len(val)-1]
			if envVal := os.Getenv(envVar); envVal != "" {
				v.Set(key, envVal)
			}
		}
	}
}
