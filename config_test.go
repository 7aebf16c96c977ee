package main

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200300")
	t.Setenv("WEBSITE_URL", "https://example.com/login")
	t.Setenv("WEBSITE_USERNAME", "user")
	t.Setenv("WEBSITE_PASSWORD", "pass")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.TelegramChatID != -100200300 {
		t.Errorf("Expected chat id -100200300, got %d", cfg.TelegramChatID)
	}
	if cfg.CheckInterval != 30*time.Second {
		t.Errorf("Expected default interval 30s, got %v", cfg.CheckInterval)
	}
	if cfg.StateFile != "last_seen.json" {
		t.Errorf("Expected default state file, got %q", cfg.StateFile)
	}
	if cfg.Selectors.UsernameInput != `input[name="username"]` {
		t.Errorf("Expected default username selector, got %q", cfg.Selectors.UsernameInput)
	}
	if cfg.Selectors.MessageIDAttr != "data-id" {
		t.Errorf("Expected default id attribute, got %q", cfg.Selectors.MessageIDAttr)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CHECK_INTERVAL", "5")
	t.Setenv("LAST_SEEN_FILE", "/var/lib/otprelay/state.json")
	t.Setenv("MESSAGE_ITEM_SELECTOR", "tr.sms-row")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("Expected 5s interval, got %v", cfg.CheckInterval)
	}
	if cfg.StateFile != "/var/lib/otprelay/state.json" {
		t.Errorf("Expected overridden state file, got %q", cfg.StateFile)
	}
	if cfg.Selectors.MessageItem != "tr.sms-row" {
		t.Errorf("Expected overridden item selector, got %q", cfg.Selectors.MessageItem)
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing token", "TELEGRAM_BOT_TOKEN"},
		{"missing chat id", "TELEGRAM_CHAT_ID"},
		{"missing site url", "WEBSITE_URL"},
		{"missing username", "WEBSITE_USERNAME"},
		{"missing password", "WEBSITE_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			if _, err := LoadConfig(); err == nil {
				t.Fatalf("Expected error when %s is unset", tt.unset)
			} else if !strings.Contains(err.Error(), tt.unset) {
				t.Errorf("Expected error to name %s, got: %v", tt.unset, err)
			}
		})
	}
}

func TestLoadConfig_InvalidChatID(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("Expected error for a non-numeric chat id")
	}
}

func TestLoadConfig_InvalidInterval(t *testing.T) {
	setRequiredEnv(t)

	for _, bad := range []string{"zero", "0", "-5"} {
		t.Setenv("CHECK_INTERVAL", bad)
		if _, err := LoadConfig(); err == nil {
			t.Errorf("Expected error for CHECK_INTERVAL=%q", bad)
		}
	}
}
