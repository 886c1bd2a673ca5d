// Package config provides configuration loading and validation for the
// roflchat programs. Values come from defaults, an optional config.yaml,
// and ROFL_* environment variables, and are validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the full configuration for a roflchat process.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Balance   BalanceConfig   `mapstructure:"balance"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Bot       BotConfig       `mapstructure:"bot"`
	Rain      RainConfig      `mapstructure:"rain"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ChatConfig describes the chat endpoint and the identity used against it.
// Username and UserID are empty for guest (read-only) sessions.
type ChatConfig struct {
	BaseURL        string        `mapstructure:"base_url"        validate:"required,url"`
	Room           string        `mapstructure:"room"            validate:"required"`
	Username       string        `mapstructure:"username"`
	UserID         string        `mapstructure:"user_id"`
	PollInterval   time.Duration `mapstructure:"poll_interval"   validate:"min=500ms,max=1m"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=1m"`
	SendRate       float64       `mapstructure:"send_rate"       validate:"gt=0"`
	SendBurst      int           `mapstructure:"send_burst"      validate:"gt=0"`
}

// BalanceConfig describes the balance endpoint.
type BalanceConfig struct {
	BaseURL        string        `mapstructure:"base_url"        validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=1m"`
}

// DatabaseConfig holds the sqlite path used for the guest ledger and the
// bot seen-message cache.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// BotConfig holds the agent loop parameters shared by both bots.
type BotConfig struct {
	Name            string        `mapstructure:"name"              validate:"required"`
	FarewellMessage string        `mapstructure:"farewell_message"`
	PollInterval    time.Duration `mapstructure:"poll_interval"     validate:"min=1s,max=5m"`
	MaxRetries      int           `mapstructure:"max_retries"       validate:"min=1,max=100"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"       validate:"min=1s,max=30m"`
	DedupCacheSize  int           `mapstructure:"dedup_cache_size"  validate:"min=100"`
	DedupWindow     time.Duration `mapstructure:"dedup_window"      validate:"min=1s,max=10m"`
}

// RainConfig controls the Anzar rain bot's scheduled rain events.
type RainConfig struct {
	Amount      int    `mapstructure:"amount"       validate:"min=1"`
	MinChatters int    `mapstructure:"min_chatters" validate:"min=0"`
	Announce    string `mapstructure:"announce"`
}

// GeminiConfig holds the Gemini reply generation settings for ROFLBot.
// APIKey empty disables Gemini and falls back to canned replies.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	ModelName         string  `mapstructure:"model_name"`
	Temperature       float32 `mapstructure:"temperature"         validate:"min=0,max=2"`
	SystemInstruction string  `mapstructure:"system_instruction"`
	MaxRetries        int     `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=1,max=60"`
}

// TaskConfig enables and schedules a single named task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// MetricsConfig configures the optional prometheus listener.
// An empty Addr disables the listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. The YAML file at path (missing file is not an error)
// 3. ROFL_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ROFL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		// Missing config file is fine, defaults plus env apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", false)

	v.SetDefault("chat.base_url", "https://roflfaucet.com/api")
	v.SetDefault("chat.room", "general")
	v.SetDefault("chat.poll_interval", 3*time.Second)
	v.SetDefault("chat.request_timeout", 10*time.Second)
	v.SetDefault("chat.send_rate", 1.0)
	v.SetDefault("chat.send_burst", 3)

	v.SetDefault("balance.base_url", "https://roflfaucet.com/api")
	v.SetDefault("balance.request_timeout", 10*time.Second)

	v.SetDefault("database.path", "roflchat.db")

	v.SetDefault("bot.name", "ROFLBot")
	v.SetDefault("bot.farewell_message", "Heading out, see you all later!")
	v.SetDefault("bot.poll_interval", 5*time.Second)
	v.SetDefault("bot.max_retries", 10)
	v.SetDefault("bot.max_backoff", 5*time.Minute)
	v.SetDefault("bot.dedup_cache_size", 1000)
	v.SetDefault("bot.dedup_window", 10*time.Second)

	v.SetDefault("rain.amount", 50)
	v.SetDefault("rain.min_chatters", 2)
	v.SetDefault("rain.announce", "Rain incoming! Stay active in chat to catch it.")

	v.SetDefault("gemini.model_name", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 1.0)
	v.SetDefault("gemini.max_retries", 2)
	v.SetDefault("gemini.retry_delay_seconds", 5)

	v.SetDefault("scheduler.tasks", map[string]TaskConfig{})

	v.SetDefault("metrics.addr", "")
}
