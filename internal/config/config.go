package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port            string
	RobloxServerKey string
	WebTokenSecret  string
	AllowedOrigins  []string
	MaxSSEPerUser   int
	MaxSSEPerIP     int
	LogLevel        string
	LogFormat       string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "3000"),
		RobloxServerKey: getEnv("ROBLOX_SERVER_KEY", ""),
		WebTokenSecret:  getEnv("WEB_TOKEN_SECRET", ""),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.MaxSSEPerUser, err = getEnvInt("MAX_SSE_PER_USER", 3); err != nil {
		return nil, err
	}
	if cfg.MaxSSEPerIP, err = getEnvInt("MAX_SSE_PER_IP", 10); err != nil {
		return nil, err
	}

	if cfg.MaxSSEPerUser < 1 {
		return nil, fmt.Errorf("MAX_SSE_PER_USER must be at least 1")
	}
	if cfg.MaxSSEPerIP < 1 {
		return nil, fmt.Errorf("MAX_SSE_PER_IP must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

// splitList parses a comma-separated env value, trimming whitespace and
// dropping empty entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
