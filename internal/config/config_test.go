package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roflfaucet/roflchat/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig with missing file failed: %v", err)
	}

	if cfg.Chat.PollInterval != 3*time.Second {
		t.Errorf("chat poll interval = %v, want 3s", cfg.Chat.PollInterval)
	}
	if cfg.Chat.RequestTimeout != 10*time.Second {
		t.Errorf("request timeout = %v, want 10s", cfg.Chat.RequestTimeout)
	}
	if cfg.Chat.Room != "general" {
		t.Errorf("room = %q, want general", cfg.Chat.Room)
	}
	if cfg.Bot.MaxRetries != 10 || cfg.Bot.MaxBackoff != 5*time.Minute {
		t.Errorf("bot retry defaults = %d/%v", cfg.Bot.MaxRetries, cfg.Bot.MaxBackoff)
	}
	if cfg.Bot.DedupWindow != 10*time.Second {
		t.Errorf("dedup window = %v, want 10s", cfg.Bot.DedupWindow)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Logger.Level)
	}
	if cfg.Metrics.Addr != "" {
		t.Errorf("metrics addr = %q, want disabled", cfg.Metrics.Addr)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
logger:
  level: debug
chat:
  room: help
  poll_interval: 5s
bot:
  name: Anzar
rain:
  amount: 25
scheduler:
  tasks:
    rain:
      enabled: true
      schedule: "0 0 * * * *"
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Logger.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logger.Level)
	}
	if cfg.Chat.Room != "help" || cfg.Chat.PollInterval != 5*time.Second {
		t.Errorf("chat = %+v", cfg.Chat)
	}
	if cfg.Bot.Name != "Anzar" {
		t.Errorf("bot name = %q, want Anzar", cfg.Bot.Name)
	}
	if cfg.Rain.Amount != 25 {
		t.Errorf("rain amount = %d, want 25", cfg.Rain.Amount)
	}
	task, ok := cfg.Scheduler.Tasks["rain"]
	if !ok || !task.Enabled || task.Schedule != "0 0 * * * *" {
		t.Errorf("rain task = %+v ok=%v", task, ok)
	}
	// Untouched keys keep their defaults.
	if cfg.Bot.MaxRetries != 10 {
		t.Errorf("bot max retries = %d, want default 10", cfg.Bot.MaxRetries)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("ROFL_CHAT_ROOM", "help")
	t.Setenv("ROFL_LOGGER_LEVEL", "warn")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Chat.Room != "help" {
		t.Errorf("room = %q, want env override help", cfg.Chat.Room)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("level = %q, want env override warn", cfg.Logger.Level)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{
			name: "invalid log level",
			yaml: "logger:\n  level: verbose\n",
		},
		{
			name: "poll interval too short",
			yaml: "chat:\n  poll_interval: 100ms\n",
		},
		{
			name: "missing chat base url",
			yaml: "chat:\n  base_url: \"\"\n",
		},
		{
			name: "gemini temperature out of range",
			yaml: "gemini:\n  temperature: 5.0\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o600); err != nil {
				t.Fatalf("writing config: %v", err)
			}
			if _, err := config.LoadConfig(path); err == nil {
				t.Errorf("invalid config accepted")
			}
		})
	}
}
