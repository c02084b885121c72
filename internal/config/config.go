package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

type Config struct {
	// Discord Bot
	DiscordToken string

	// Database; empty keeps the ledger in memory
	DatabaseURL string

	// Translator
	OpenRouterAPIKey string
	LLMBaseURL       string
	LLMModel         string

	// Voice notes
	OpenAIAPIKey string

	// Web Server
	WebBind string

	// Session
	SessionBackend string
	RedisURL       string
	SessionTTL     time.Duration

	LogLevel string
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		LLMBaseURL:       getEnvDefault("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMModel:         getEnvDefault("LLM_MODEL", "google/gemini-2.0-flash-exp"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		WebBind:          getEnvDefault("WEB_BIND", "0.0.0.0:8000"),
		SessionBackend:   strings.ToLower(getEnvDefault("SESSION_BACKEND", SessionMemory)),
		RedisURL:         getEnvDefault("REDIS_URL", "redis://localhost:6379/0"),
		LogLevel:         strings.ToLower(getEnvDefault("LOG_LEVEL", "info")),
	}

	ttl, err := time.ParseDuration(getEnvDefault("SESSION_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}
	cfg.SessionTTL = ttl

	if cfg.SessionBackend != SessionMemory && cfg.SessionBackend != SessionRedis {
		return nil, fmt.Errorf("SESSION_BACKEND must be %q or %q, got %q", SessionMemory, SessionRedis, cfg.SessionBackend)
	}

	return cfg, nil
}

// Validate reports the first missing setting needed to serve chat traffic.
func (c *Config) Validate() error {
	if c.OpenRouterAPIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if c.SessionBackend == SessionRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for the redis session backend")
	}
	return nil
}

func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
