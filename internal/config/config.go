// Package config handles loading and validating configuration from environment variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Token is the bearer token for API authentication.
	Token string
	// DataDir is the directory holding the sqlite database.
	DataDir string
	// ServerAddr is the HTTP listen address (e.g., :80, :8080).
	ServerAddr string
	// DefaultWorkingDir is used when a conversation does not set one.
	DefaultWorkingDir string
	// DefaultProvider selects the provider for new conversations.
	DefaultProvider string
	// ClaudeBin, CodexBin, GeminiBin override the agent CLI binaries.
	ClaudeBin string
	CodexBin  string
	GeminiBin string
	// AllowedOrigins lists CORS origins for the browser client.
	AllowedOrigins []string
	// TurnTimeout bounds one agent turn's lifetime.
	TurnTimeout time.Duration
}

// Load reads configuration from environment variables.
// It loads .env file if present, but environment variables take precedence.
func Load() (*Config, error) {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Token:             os.Getenv("AGENTDECK_TOKEN"),
		DataDir:           os.Getenv("AGENTDECK_DATA_DIR"),
		ServerAddr:        os.Getenv("SERVER_ADDR"),
		DefaultWorkingDir: os.Getenv("AGENTDECK_WORKING_DIR"),
		DefaultProvider:   strings.TrimSpace(os.Getenv("AGENTDECK_DEFAULT_PROVIDER")),
		ClaudeBin:         strings.TrimSpace(os.Getenv("AGENTDECK_CLAUDE_BIN")),
		CodexBin:          strings.TrimSpace(os.Getenv("AGENTDECK_CODEX_BIN")),
		GeminiBin:         strings.TrimSpace(os.Getenv("AGENTDECK_GEMINI_BIN")),
		AllowedOrigins:    parseCSV(os.Getenv("AGENTDECK_ALLOWED_ORIGINS")),
	}
	cfg.TurnTimeout = parseDurationEnv("AGENT_TURN_TIMEOUT", 5*time.Minute)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set and fills
// in the defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("AGENTDECK_TOKEN is required")
	}
	if c.DataDir == "" {
		return errors.New("AGENTDECK_DATA_DIR is required")
	}
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = "claude"
	}
	if c.ClaudeBin == "" {
		c.ClaudeBin = "claude"
	}
	if c.CodexBin == "" {
		c.CodexBin = "codex"
	}
	if c.GeminiBin == "" {
		c.GeminiBin = "gemini"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	// DefaultWorkingDir is optional - conversations can set their own.
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

func parseBoolEnv(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
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
