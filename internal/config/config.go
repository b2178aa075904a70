// Package config handles loading and validating configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"movie-chatbot/internal/store"
)

// Config holds all application configuration.
type Config struct {
	// ServerAddr is the HTTP listen address (e.g., :3000).
	ServerAddr string
	// APIToken is the optional bearer token for /api routes.
	APIToken string
	// AllowedOrigins lists CORS origins.
	AllowedOrigins []string

	// OpenAI configures the chat-completions endpoint.
	OpenAI OpenAIConfig
	// OMDb configures the search-movie tool.
	OMDb OMDbConfig

	// StoreDriver selects the message store backend.
	StoreDriver string
	// StoreDSN is the store's DSN or file path.
	StoreDSN string

	// StreamTimeout bounds one streaming session.
	StreamTimeout time.Duration
	// RequestTimeout bounds one non-streaming ask.
	RequestTimeout time.Duration
	// AgentMaxToolRounds bounds model->tool round trips per turn.
	AgentMaxToolRounds int
	// HistoryTokenBudget bounds the replayed conversation history.
	HistoryTokenBudget int
}

// OpenAIConfig holds the LLM endpoint settings.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// OMDbConfig holds the movie database settings.
type OMDbConfig struct {
	APIKey  string
	BaseURL string
}

// Load reads configuration from environment variables.
// It loads the given .env files (or ./.env) if present, but environment
// variables take precedence.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		ServerAddr:     strings.TrimSpace(os.Getenv("SERVER_ADDR")),
		APIToken:       os.Getenv("API_TOKEN"),
		AllowedOrigins: parseCSV(os.Getenv("ALLOWED_ORIGINS")),
		OpenAI: OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			BaseURL:     strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Model:       strings.TrimSpace(os.Getenv("OPENAI_MODEL")),
			Temperature: parseFloatEnv("OPENAI_TEMPERATURE", 0),
		},
		OMDb: OMDbConfig{
			APIKey:  os.Getenv("OMDB_API_KEY"),
			BaseURL: strings.TrimSpace(os.Getenv("OMDB_BASE_URL")),
		},
		StoreDriver: strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER"))),
		StoreDSN:    strings.TrimSpace(os.Getenv("STORE_DSN")),
	}
	cfg.StreamTimeout = parseDurationEnv("STREAM_TIMEOUT", 10*time.Second)
	cfg.RequestTimeout = parseDurationEnv("REQUEST_TIMEOUT", 30*time.Second)
	cfg.AgentMaxToolRounds = parseIntEnv("AGENT_MAX_TOOL_ROUNDS", 5)
	cfg.HistoryTokenBudget = parseIntEnv("HISTORY_TOKEN_BUDGET", 6000)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate fills defaults and rejects invalid settings.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		c.ServerAddr = ":3000"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OMDb.BaseURL == "" {
		c.OMDb.BaseURL = "http://www.omdbapi.com"
	}
	if c.StoreDriver == "" {
		c.StoreDriver = store.DriverSQLite3
	}
	if !store.ValidDriver(c.StoreDriver) {
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.StoreDriver)
	}
	if c.StoreDSN == "" {
		switch c.StoreDriver {
		case store.DriverSQLite3, store.DriverSQLite:
			c.StoreDSN = "data/chatbot.db"
		case store.DriverPostgres:
			return errors.New("STORE_DSN is required for the postgres driver")
		}
	}
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = 10 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.AgentMaxToolRounds <= 0 {
		c.AgentMaxToolRounds = 5
	}
	// OMDB_API_KEY is optional - the search-movie tool is disabled without it
	return nil
}

// RequireLLM reports an error when the agent cannot be built.
func (c *Config) RequireLLM() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	return nil
}

func parseCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseIntEnv(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return defaultValue
	}
	return parsed
}

func parseFloatEnv(key string, defaultValue float32) float32 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 32)
	if err != nil || parsed < 0 {
		return defaultValue
	}
	return float32(parsed)
}

func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}
