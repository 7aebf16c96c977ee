package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the relay, loaded once at startup.
type Config struct {
	TelegramBotToken string
	TelegramChatID   int64

	WebsiteURL      string
	WebsiteUsername string
	WebsitePassword string
	OTPPageURL      string

	CheckInterval time.Duration
	StateFile     string

	Selectors Selectors
}

// Selectors identifies the login form and message list elements on the
// target site. The defaults are placeholders and almost certainly need
// to be overridden for a real deployment.
type Selectors struct {
	UsernameInput     string
	PasswordInput     string
	SubmitButton      string
	MessagesContainer string
	MessageItem       string
	MessageIDAttr     string
	Number            string
	Service           string
	MessageText       string
	Timestamp         string
}

// LoadConfig reads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		WebsiteURL:       os.Getenv("WEBSITE_URL"),
		WebsiteUsername:  os.Getenv("WEBSITE_USERNAME"),
		WebsitePassword:  os.Getenv("WEBSITE_PASSWORD"),
		OTPPageURL:       os.Getenv("OTP_PAGE_URL"),
		StateFile:        getEnv("LAST_SEEN_FILE", "last_seen.json"),
		Selectors: Selectors{
			UsernameInput:     getEnv("USERNAME_INPUT_SELECTOR", `input[name="username"]`),
			PasswordInput:     getEnv("PASSWORD_INPUT_SELECTOR", `input[name="password"]`),
			SubmitButton:      getEnv("SUBMIT_BUTTON_SELECTOR", `button[type="submit"]`),
			MessagesContainer: getEnv("MESSAGES_CONTAINER_SELECTOR", "div.messages"),
			MessageItem:       getEnv("MESSAGE_ITEM_SELECTOR", ".message-item"),
			MessageIDAttr:     getEnv("MESSAGE_ID_ATTR", "data-id"),
			Number:            getEnv("NUMBER_SELECTOR", ".number"),
			Service:           getEnv("SERVICE_SELECTOR", ".platform"),
			MessageText:       getEnv("MESSAGE_TEXT_SELECTOR", ".message-text"),
			Timestamp:         getEnv("TIMESTAMP_SELECTOR", ".time"),
		},
	}

	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	chatID := os.Getenv("TELEGRAM_CHAT_ID")
	if chatID == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", chatID, err)
	}
	cfg.TelegramChatID = id

	if cfg.WebsiteURL == "" {
		return nil, fmt.Errorf("WEBSITE_URL is required")
	}
	if cfg.WebsiteUsername == "" {
		return nil, fmt.Errorf("WEBSITE_USERNAME is required")
	}
	if cfg.WebsitePassword == "" {
		return nil, fmt.Errorf("WEBSITE_PASSWORD is required")
	}

	// CHECK_INTERVAL is a number of seconds.
	interval := getEnv("CHECK_INTERVAL", "30")
	seconds, err := strconv.Atoi(interval)
	if err != nil || seconds <= 0 {
		return nil, fmt.Errorf("invalid CHECK_INTERVAL %q: must be a positive number of seconds", interval)
	}
	cfg.CheckInterval = time.Duration(seconds) * time.Second

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
