// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds process-level configuration loaded once at startup.
type AppConfig struct {
	// Port is the HTTP server port.
	Port int `envconfig:"PORT" default:"8990"`

	// DatabaseURL is the Postgres connection string used by the channel bus
	// and the delivery log. Optional — without it the bus stays uninitialized
	// and publishes become no-ops.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// TemporalAddress is the host:port of the durable-workflow engine.
	// Optional — without it every event falls through the bridge's local
	// fallback path.
	TemporalAddress string `envconfig:"TEMPORAL_ADDRESS"`

	// TemporalNamespace is the Temporal namespace for notification workflows.
	TemporalNamespace string `envconfig:"TEMPORAL_NAMESPACE" default:"default"`

	// TaskQueue is the Temporal task queue notification workflows run on.
	TaskQueue string `envconfig:"NUDGE_TASK_QUEUE" default:"nudge-notifications"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// LogFile is an optional path for rotated JSON log output. Empty means
	// stderr only.
	LogFile string `envconfig:"NUDGE_LOG_FILE"`

	// RedeliveryInterval is how often the failed-delivery sweeper runs, in
	// minutes. Zero disables the sweeper.
	RedeliveryInterval int `envconfig:"NUDGE_REDELIVERY_INTERVAL_MINUTES" default:"5"`

	// RedeliveryMaxAttempts caps total attempts per delivery row.
	RedeliveryMaxAttempts int `envconfig:"NUDGE_REDELIVERY_MAX_ATTEMPTS" default:"3"`
}

// Load reads AppConfig from environment variables using envconfig.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AdapterSettings holds per-adapter credentials and targets. It is re-read on
// every delivery so configuration changes take effect on the next event
// without a restart.
type AdapterSettings struct {
	// WebhookURL is the target for the webhook adapter.
	WebhookURL string `envconfig:"NUDGE_WEBHOOK_URL"`
	// WebhookToken is an optional bearer token sent with webhook POSTs.
	WebhookToken string `envconfig:"NUDGE_WEBHOOK_TOKEN"`

	// TelegramBotToken authenticates against the Telegram Bot API.
	TelegramBotToken string `envconfig:"NUDGE_TELEGRAM_BOT_TOKEN"`
	// TelegramChatID is the chat that receives notifications.
	TelegramChatID string `envconfig:"NUDGE_TELEGRAM_CHAT_ID"`

	// AgentCallbackURL is the agent-runtime callback endpoint.
	AgentCallbackURL string `envconfig:"NUDGE_AGENT_CALLBACK_URL"`
	// AgentCallbackToken gates the agentcall adapter.
	AgentCallbackToken string `envconfig:"NUDGE_AGENT_CALLBACK_TOKEN"`

	// SMTP settings for the email adapter.
	SMTPHost       string `envconfig:"NUDGE_SMTP_HOST"`
	SMTPPort       int    `envconfig:"NUDGE_SMTP_PORT" default:"587"`
	SMTPUsername   string `envconfig:"NUDGE_SMTP_USERNAME"`
	SMTPPassword   string `envconfig:"NUDGE_SMTP_PASSWORD"`
	SMTPFrom       string `envconfig:"NUDGE_SMTP_FROM"`
	SMTPTo         string `envconfig:"NUDGE_SMTP_TO"`
	SMTPEncryption string `envconfig:"NUDGE_SMTP_ENCRYPTION" default:"starttls"`
}

// SettingsLoader returns the current adapter settings. Adapters call it on
// every Deliver.
type SettingsLoader func() (*AdapterSettings, error)

// LoadAdapterSettings reads AdapterSettings from the environment. It is the
// default SettingsLoader.
func LoadAdapterSettings() (*AdapterSettings, error) {
	var s AdapterSettings
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("loading adapter settings: %w", err)
	}
	return &s, nil
}
