// Package config loads application settings from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application settings. Values are read from the
// environment, with an optional .env file at the working directory.
type Config struct {
	// Database
	DatabasePath string

	// Telegram
	TelegramBotToken       string
	AllowedTelegramUserIDs []int64

	// Local LLM (Ollama, OpenAI-compatible endpoint)
	OllamaBaseURL string
	OllamaModel   string

	// Fallback LLM (paid API)
	FallbackLLMProvider string // "anthropic" or "openai"
	FallbackLLMModel    string
	AnthropicAPIKey     string
	OpenAIAPIKey        string
	LLMTimeout          time.Duration

	// General
	DefaultCurrency string
	AssumeHalfSplit bool

	// Web form API
	WebAPIAddr    string
	WebAppBaseURL string
	WebAppAPIURL  string
	JWTSecret     string
}

// Load reads configuration from the environment. A .env file is loaded
// first if present; a missing file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:        getEnvDefault("DB_PATH", "./data/finbot.db"),
		TelegramBotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		OllamaBaseURL:       getEnvDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:         getEnvDefault("OLLAMA_MODEL", "qwen2.5:7b-instruct-q4_K_M"),
		FallbackLLMProvider: getEnvDefault("FALLBACK_LLM_PROVIDER", "anthropic"),
		FallbackLLMModel:    getEnvDefault("FALLBACK_LLM_MODEL", "claude-3-5-haiku-latest"),
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		DefaultCurrency:     getEnvDefault("DEFAULT_CURRENCY", "ILS"),
		WebAPIAddr:          getEnvDefault("WEBAPI_ADDR", ":8090"),
		WebAppBaseURL:       os.Getenv("WEBAPP_BASE_URL"),
		WebAppAPIURL:        os.Getenv("WEBAPP_API_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
	}

	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	switch cfg.FallbackLLMProvider {
	case "anthropic", "openai":
	default:
		return nil, fmt.Errorf("FALLBACK_LLM_PROVIDER must be 'anthropic' or 'openai', got %q", cfg.FallbackLLMProvider)
	}

	ids, err := parseUserIDs(os.Getenv("ALLOWED_TELEGRAM_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("parsing ALLOWED_TELEGRAM_USER_IDS: %w", err)
	}
	cfg.AllowedTelegramUserIDs = ids

	cfg.AssumeHalfSplit, err = parseBool(getEnvDefault("ASSUME_HALF_SPLIT", "false"))
	if err != nil {
		return nil, fmt.Errorf("parsing ASSUME_HALF_SPLIT: %w", err)
	}

	timeout, err := time.ParseDuration(getEnvDefault("LLM_TIMEOUT", "120s"))
	if err != nil {
		return nil, fmt.Errorf("parsing LLM_TIMEOUT: %w", err)
	}
	cfg.LLMTimeout = timeout

	return cfg, nil
}

// Allowed reports whether userID may interact with the bot.
// An empty allow-list permits everyone.
func (c *Config) Allowed(userID int64) bool {
	if len(c.AllowedTelegramUserIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedTelegramUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseUserIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseBool(raw string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(raw))
}
