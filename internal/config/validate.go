package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/robfig/cron/v3"

	"github.com/despachantemarcelino/hookd/internal/requestctx"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateWebhook(&cfg.Webhook)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateDatabase(&cfg.Database, cfg.Journal.Enabled)...)
	errs = append(errs, validateLive(&cfg.Live)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateServer(cfg *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	for field, d := range map[string]time.Duration{
		"server.read_timeout":     cfg.ReadTimeout,
		"server.write_timeout":    cfg.WriteTimeout,
		"server.idle_timeout":     cfg.IdleTimeout,
		"server.shutdown_timeout": cfg.ShutdownTimeout,
	} {
		if d < 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "must be non-negative",
			})
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Max < 1 {
			errs = append(errs, ValidationError{
				Field:   "server.rate_limit.max",
				Message: "must be at least 1",
			})
		}
		if cfg.RateLimit.Window <= 0 {
			errs = append(errs, ValidationError{
				Field:   "server.rate_limit.window",
				Message: "must be positive",
			})
		}
	}

	for _, proxy := range cfg.TrustedProxies {
		if _, err := requestctx.ParseTrustedProxies([]string{proxy}); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.trusted_proxies",
				Message: err.Error(),
			})
		}
	}

	return errs
}

func validateWebhook(cfg *WebhookConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Secret == "" && cfg.SecretEnv == "" {
		errs = append(errs, ValidationError{
			Field:   "webhook.secret_env",
			Message: "required when webhook.secret is not set",
		})
	}

	if cfg.MaxBodySize < 1 {
		errs = append(errs, ValidationError{
			Field:   "webhook.max_body_size",
			Message: "must be positive",
		})
	}

	for _, pattern := range cfg.CORS.AllowedOrigins {
		if _, err := glob.Compile(pattern, '.', ':', '/'); err != nil {
			errs = append(errs, ValidationError{
				Field:   "webhook.cors.allowed_origins",
				Message: fmt.Sprintf("invalid pattern %q: %v", pattern, err),
			})
		}
	}

	return errs
}

func validateJournal(cfg *JournalConfig) ValidationErrors {
	var errs ValidationErrors

	if !cfg.Enabled {
		return errs
	}

	if cfg.Retention < time.Hour {
		errs = append(errs, ValidationError{
			Field:   "journal.retention",
			Message: "must be at least 1h",
		})
	}

	if cfg.CleanupSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(cfg.CleanupSchedule); err != nil {
			errs = append(errs, ValidationError{
				Field:   "journal.cleanup_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

func validateDatabase(cfg *DatabaseConfig, required bool) ValidationErrors {
	var errs ValidationErrors

	if !required {
		return errs
	}

	if cfg.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "database.path",
			Message: "required when the journal is enabled",
		})
	}

	if cfg.MaxOpenConns < 1 {
		errs = append(errs, ValidationError{
			Field:   "database.max_open_conns",
			Message: "must be at least 1",
		})
	}

	if cfg.BusyTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "database.busy_timeout",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateLive(cfg *LiveConfig) ValidationErrors {
	var errs ValidationErrors

	if !cfg.Enabled {
		return errs
	}

	if cfg.MaxClients < 1 {
		errs = append(errs, ValidationError{
			Field:   "live.max_clients",
			Message: "must be at least 1",
		})
	}

	if cfg.BufferSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "live.buffer_size",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateMetrics(cfg *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Enabled && !strings.HasPrefix(cfg.Path, "/") {
		errs = append(errs, ValidationError{
			Field:   "metrics.path",
			Message: "must start with /",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[cfg.Level] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be one of: trace, debug, info, warn, error, fatal, panic",
		})
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Format] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'console'",
		})
	}

	return errs
}
